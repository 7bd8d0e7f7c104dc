package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/tbruun/musikquiz/internal/adapters/http"
	"github.com/tbruun/musikquiz/internal/catalog"
	"github.com/tbruun/musikquiz/internal/config"
	"github.com/tbruun/musikquiz/internal/game"
	"github.com/tbruun/musikquiz/internal/stats"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var sink stats.Sink = stats.Nop{}
	if cfg.StatsDSN != "" {
		store, err := stats.Open(cfg.StatsDSN)
		if err != nil {
			// Stats are optional; the game runs fine without them.
			log.Warn().Err(err).Str("dsn", cfg.StatsDSN).Msg("stats store unavailable, continuing without")
		} else {
			defer store.Close()
			sink = store
		}
	}

	songs := catalog.Load(cfg.StaticPath)
	engine := game.NewEngine(songs, sink, game.Config{
		PlayerTimeout: cfg.PlayerTimeout,
		DefaultRounds: cfg.DefaultRounds,
		DefaultTimer:  cfg.DefaultTimer,
	})

	r := router.SetupRouter(cfg, engine, sink)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("musikquiz server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
