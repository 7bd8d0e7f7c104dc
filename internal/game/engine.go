// Package game holds the room state machine: round lifecycle, scoring,
// DJ rotation, presence eviction and the fairness rules that keep DJ
// duty evenly distributed when the player count changes.
//
// There is no background scheduler. Every time-dependent transition
// (round timeout, presence eviction) is evaluated lazily at the next
// request touching the room, so a room nobody polls is frozen.
package game

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbruun/musikquiz/internal/catalog"
	"github.com/tbruun/musikquiz/internal/domain"
	"github.com/tbruun/musikquiz/internal/stats"
)

// Config carries the gameplay knobs the engine needs.
type Config struct {
	// PlayerTimeout is the presence window: players whose last request
	// is older than this are evicted on the next request to their room.
	PlayerTimeout time.Duration
	DefaultRounds int
	DefaultTimer  int
}

// Engine applies operations to rooms. All operations lock the target
// room for their full duration; the registry map is locked separately.
type Engine struct {
	rooms   *Registry
	catalog *catalog.Catalog
	stats   stats.Sink
	cfg     Config

	// now is swappable so tests can drive the round clock.
	now func() time.Time
}

func NewEngine(cat *catalog.Catalog, sink stats.Sink, cfg Config) *Engine {
	if cfg.PlayerTimeout <= 0 {
		cfg.PlayerTimeout = 30 * time.Second
	}
	if cfg.DefaultRounds <= 0 {
		cfg.DefaultRounds = 10
	}
	if cfg.DefaultTimer <= 0 {
		cfg.DefaultTimer = 20
	}
	return &Engine{
		rooms:   NewRegistry(),
		catalog: cat,
		stats:   sink,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Rooms exposes the registry for admin views.
func (e *Engine) Rooms() *Registry { return e.rooms }

// Categories returns the catalog's category names in display order.
func (e *Engine) Categories() []string { return e.catalog.CategoryNames() }

// withRoom is the common prelude of every room-addressed operation:
// look the room up, lock it, run presence maintenance (evict stale
// players, touch the actor), settle an expired round, and delete the
// room if maintenance left it empty. fn runs with the room lock held.
func (e *Engine) withRoom(code domain.RoomCode, actor domain.PlayerID, fn func(*domain.Room) error) error {
	room, ok := e.rooms.Lookup(code)
	if !ok {
		return ErrRoomNotFound
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	e.evictStale(room)
	if actor != "" {
		if p, _ := room.PlayerByID(actor); p != nil {
			p.LastSeen = e.now()
			p.Connected = true
		}
	}
	if len(room.Players) == 0 {
		e.rooms.Delete(room.Code)
		return ErrRoomNotFound
	}
	e.maybeResolve(room)
	return fn(room)
}

func (e *Engine) evictStale(room *domain.Room) {
	now := e.now()
	var stale []domain.PlayerID
	for _, p := range room.Players {
		if now.Sub(p.LastSeen) > e.cfg.PlayerTimeout {
			stale = append(stale, p.ID)
		}
	}
	for _, id := range stale {
		log.Info().Str("module", "game.engine").Str("room", string(room.Code)).Str("player", string(id)).Msg("evicting inactive player")
		e.removePlayer(room, id)
	}
}

// removePlayer is the departure procedure shared by presence eviction
// and explicit leave. It keeps host, DJ index and the remaining round
// budget consistent. Reports whether the player was present.
func (e *Engine) removePlayer(room *domain.Room, id domain.PlayerID) bool {
	_, idx := room.PlayerByID(id)
	if idx < 0 {
		return false
	}
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	delete(room.Scores, id)
	delete(room.Guesses, id)
	delete(room.LastRoundPoints, id)

	if len(room.Players) == 0 {
		return true
	}

	if room.HostID == id {
		room.HostID = room.Players[0].ID
	}

	switch {
	case idx < room.DJIndex:
		room.DJIndex--
	case idx == room.DJIndex:
		// DJ left: whoever now occupies the same slot takes over, and an
		// in-flight round is closed so guessers are not left waiting.
		room.DJIndex = room.DJIndex % len(room.Players)
		room.WaitingForDJ = true
		if room.Status == domain.StatusRound {
			room.Status = domain.StatusRoundResult
		}
	}

	e.rebalanceRounds(room)
	return true
}

// rebalanceRounds floors the remaining rounds to a multiple of the
// surviving player count, so a full rotation stays reachable.
func (e *Engine) rebalanceRounds(room *domain.Room) {
	if !room.Started || room.RoundsTotal <= 0 {
		return
	}
	remaining := room.RoundsTotal - room.RoundIndex
	if remaining < 0 {
		remaining = 0
	}
	n := len(room.Players)
	if n == 0 {
		return
	}
	room.RoundsTotal = room.RoundIndex + (remaining/n)*n
	if room.RoundIndex >= room.RoundsTotal {
		room.Status = domain.StatusGameOver
		room.Started = false
		e.recordCompletion(room)
	}
}

// fairRounds rounds requested up to the smallest multiple of players
// that still gives everyone at least one turn as DJ.
func fairRounds(requested, players int) int {
	if players < 1 {
		players = 1
	}
	if requested < players {
		requested = players
	}
	if rem := requested % players; rem != 0 {
		requested += players - rem
	}
	return requested
}

// recordCompletion fires the game-completed stat exactly once per game.
// game_over is observed repeatedly across polls, hence the flag.
func (e *Engine) recordCompletion(room *domain.Room) {
	if room.CompletionRecorded {
		return
	}
	room.CompletionRecorded = true
	e.stats.RecordGameCompleted()
	log.Info().Str("module", "game.engine").Str("room", string(room.Code)).Int("rounds", room.RoundsTotal).Msg("game completed")
}
