package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbruun/musikquiz/internal/domain"
	"github.com/tbruun/musikquiz/internal/game"
)

// Version is reported to clients so they can prompt for a reload after
// a deploy.
const Version = "2.0.0"

// apiRequest is the single request shape of the poll protocol. Numeric
// fields arrive as numbers or strings depending on the client, hence
// the any-typed fields coerced below.
type apiRequest struct {
	Action   string `json:"action"`
	Room     string `json:"room"`
	RoomCode string `json:"room_code"`
	Player   string `json:"player"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Category string `json:"category"`

	Rounds      any `json:"rounds"`
	RoundsTotal any `json:"rounds_total"`
	Timer       any `json:"timer"`
	Year        any `json:"year"`
}

func (r *apiRequest) room() domain.RoomCode {
	if r.Room != "" {
		return domain.RoomCode(r.Room)
	}
	return domain.RoomCode(r.RoomCode)
}

func (r *apiRequest) player() domain.PlayerID {
	if r.Player != "" {
		return domain.PlayerID(r.Player)
	}
	return domain.PlayerID(r.PlayerID)
}

// asInt coerces a JSON value into an int. ok is false for anything
// that is not a whole number in disguise.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func intOrZero(v any) int {
	i, _ := asInt(v)
	return i
}

type apiHandler struct {
	engine *game.Engine
}

func (h *apiHandler) Handle(c *gin.Context) {
	var req apiRequest
	// Be permissive about content types; proxies are known to mangle
	// the header, so a bind failure means an empty request, not a 400.
	if err := c.ShouldBindJSON(&req); err != nil {
		req = apiRequest{}
	}

	switch req.Action {
	case "version":
		c.JSON(http.StatusOK, gin.H{"ok": true, "version": Version})

	case "create_room", "create":
		code, playerID := h.engine.CreateRoom(req.Name, req.Category, intOrZero(req.Rounds), intOrZero(req.Timer))
		c.JSON(http.StatusOK, gin.H{"ok": true, "room": code, "player": gin.H{"id": playerID}})

	case "join":
		playerID, err := h.engine.Join(req.room(), req.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"player": gin.H{"id": playerID}})

	case "state":
		snap, err := h.engine.State(req.room(), req.player())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)

	case "start_game":
		rounds := intOrZero(req.RoundsTotal)
		if rounds == 0 {
			rounds = intOrZero(req.Rounds)
		}
		if err := h.engine.StartGame(req.room(), req.player(), rounds); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "start_timer":
		startedAt, err := h.engine.StartTimer(req.room(), req.player())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "round_started_at": startedAt})

	case "skip_song":
		snap, err := h.engine.SkipSong(req.room(), req.player())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)

	case "submit_guess":
		year, ok := asInt(req.Year)
		if !ok {
			respondError(c, game.ErrInvalidYear)
			return
		}
		if err := h.engine.SubmitGuess(req.room(), req.player(), year); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "next_round":
		if err := h.engine.NextRound(req.room(), req.player()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "reset_game":
		if err := h.engine.ResetGame(req.room(), req.player()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "set_category":
		if err := h.engine.SetCategory(req.room(), req.player(), req.Category); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "leave_room":
		if err := h.engine.Leave(req.room(), req.player()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})

	case "categories":
		c.JSON(http.StatusOK, gin.H{"categories": h.engine.Categories()})

	default:
		respondError(c, game.ErrUnknownAction)
	}
}

func respondError(c *gin.Context, err error) {
	var gameErr *game.Error
	if !errors.As(err, &gameErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	status := http.StatusBadRequest
	if gameErr.Kind == game.KindForbidden {
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": gameErr.Code})
}
