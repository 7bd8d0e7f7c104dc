// Package http wires the game engine to its poll-driven HTTP surface:
// a single POST /api action endpoint plus the static web client.
package http

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbruun/musikquiz/internal/config"
	"github.com/tbruun/musikquiz/internal/game"
	"github.com/tbruun/musikquiz/internal/stats"
)

// DeviceTokenMiddleware tags every browser with a long-lived cookie so
// the stats sink can count distinct devices. Gameplay never reads it.
func DeviceTokenMiddleware(sink stats.Sink) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("dt")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("dt", token, 3600*24*180, "/", "", false, true)
		}
		sink.RecordDeviceSeen(token)
		c.Next()
	}
}

// NoCacheMiddleware keeps the entry assets fresh across deploys; some
// hosts serve 304s from cache otherwise.
func NoCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == "/" || p == "/client.js" || p == "/styles.css" || strings.HasPrefix(p, "/covers/") {
			c.Header("Cache-Control", "no-store, max-age=0")
			c.Header("Pragma", "no-cache")
		}
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, engine *game.Engine, sink stats.Sink) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(NoCacheMiddleware())
	r.Use(DeviceTokenMiddleware(sink))

	h := &apiHandler{engine: engine}
	api := r.Group("/api")
	if cfg.RateLimit > 0 {
		api.Use(RateLimitMiddleware(NewRateLimiter(cfg.RateLimit, time.Second)))
	}
	api.POST("", h.Handle)

	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		p := filepath.Clean(c.Request.URL.Path)
		if strings.Contains(p, "..") {
			c.Status(http.StatusBadRequest)
			return
		}
		c.File(filepath.Join(cfg.StaticPath, p))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
