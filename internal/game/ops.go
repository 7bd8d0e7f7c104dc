package game

import (
	"github.com/rs/zerolog/log"

	"github.com/tbruun/musikquiz/internal/catalog"
	"github.com/tbruun/musikquiz/internal/domain"
)

// CreateRoom makes a new room with its creator as host and returns the
// room code and the host's player id.
func (e *Engine) CreateRoom(name, category string, rounds, timer int) (domain.RoomCode, domain.PlayerID) {
	if category == "" {
		category = catalog.DefaultCategory
	}
	if rounds <= 0 {
		rounds = e.cfg.DefaultRounds
	}
	if timer <= 0 {
		timer = e.cfg.DefaultTimer
	}

	host := domain.NewPlayer(name, e.now())
	room := e.rooms.Create(func(code domain.RoomCode) *domain.Room {
		return &domain.Room{
			Code:            code,
			Players:         []*domain.Player{host},
			HostID:          host.ID,
			Status:          domain.StatusLobby,
			Category:        category,
			UnusedSongs:     e.catalog.SongsForCategory(category),
			Guesses:         make(map[domain.PlayerID]int),
			Scores:          map[domain.PlayerID]int{host.ID: 0},
			LastRoundPoints: make(map[domain.PlayerID]int),
			RoundsTotal:     rounds,
			TimerSeconds:    timer,
		}
	})
	e.stats.RecordRoomCreated()
	return room.Code, host.ID
}

// Join adds a new player to the room and returns their id. Joining
// mid-game rounds the remaining round budget up to a multiple of the
// new player count, so the newcomer gets DJ turns like everyone else.
func (e *Engine) Join(code domain.RoomCode, name string) (domain.PlayerID, error) {
	var id domain.PlayerID
	err := e.withRoom(code, "", func(room *domain.Room) error {
		p := domain.NewPlayer(name, e.now())
		room.Players = append(room.Players, p)
		room.Scores[p.ID] = 0
		room.LastRoundPoints[p.ID] = 0
		id = p.ID

		if room.Started && room.RoundsTotal > 0 {
			n := len(room.Players)
			remaining := room.RoundsTotal - room.RoundIndex
			if rem := remaining % n; rem != 0 {
				room.RoundsTotal += n - rem
			}
		}

		log.Info().Str("module", "game.engine").Str("room", string(code)).Str("player", string(p.ID)).Str("name", p.Name).Msg("player joined")
		return nil
	})
	return id, err
}

// State returns the room snapshot. Round settlement happens in
// withRoom, so a poll is enough to resolve an expired round.
func (e *Engine) State(code domain.RoomCode, actor domain.PlayerID) (*Snapshot, error) {
	var snap *Snapshot
	err := e.withRoom(code, actor, func(room *domain.Room) error {
		snap = e.snapshot(room)
		return nil
	})
	return snap, err
}

// StartGame begins a game: host only. The requested round count is
// rounded up to the nearest multiple of the player count so every
// player DJs equally often.
func (e *Engine) StartGame(code domain.RoomCode, actor domain.PlayerID, requestedRounds int) error {
	return e.withRoom(code, actor, func(room *domain.Room) error {
		if actor != room.HostID {
			return ErrOnlyHostCanStart
		}

		requested := requestedRounds
		if requested <= 0 {
			requested = room.RoundsTotal
		}
		if requested <= 0 {
			requested = e.cfg.DefaultRounds
		}
		room.RoundsTotal = fairRounds(requested, len(room.Players))

		room.Started = true
		room.Status = domain.StatusRound
		room.RoundIndex = 0
		room.DJIndex = 0
		room.Guesses = make(map[domain.PlayerID]int)
		room.LastRoundPoints = make(map[domain.PlayerID]int)
		room.History = nil
		room.RoundStartedAt = nil
		room.WaitingForDJ = false
		room.CompletionRecorded = false
		e.drawSong(room)

		log.Info().Str("module", "game.engine").Str("room", string(code)).Int("rounds_total", room.RoundsTotal).Int("players", len(room.Players)).Msg("game started")
		return nil
	})
}

// StartTimer arms the round clock: current DJ only, mid-round only.
// Calling it again re-arms the clock.
func (e *Engine) StartTimer(code domain.RoomCode, actor domain.PlayerID) (float64, error) {
	var startedAt float64
	err := e.withRoom(code, actor, func(room *domain.Room) error {
		if err := requireActiveRound(room); err != nil {
			return err
		}
		if err := requireDJ(room, actor); err != nil {
			return err
		}
		now := e.now()
		room.RoundStartedAt = &now
		startedAt = epochSeconds(now)
		return nil
	})
	return startedAt, err
}

// SkipSong lets the DJ swap the current song for another one, keeping
// the round open and its index unchanged.
func (e *Engine) SkipSong(code domain.RoomCode, actor domain.PlayerID) (*Snapshot, error) {
	var snap *Snapshot
	err := e.withRoom(code, actor, func(room *domain.Room) error {
		if err := requireActiveRound(room); err != nil {
			return err
		}
		if err := requireDJ(room, actor); err != nil {
			return err
		}
		e.redrawSameCategory(room)
		snap = e.snapshot(room)
		return nil
	})
	return snap, err
}

// SubmitGuess records one non-DJ player's year guess. The round
// resolves immediately once every guesser has answered.
func (e *Engine) SubmitGuess(code domain.RoomCode, actor domain.PlayerID, year int) error {
	if actor == "" {
		return ErrMissingPlayer
	}
	return e.withRoom(code, actor, func(room *domain.Room) error {
		if room.Status != domain.StatusRound {
			return ErrNoActiveRound
		}
		if p, _ := room.PlayerByID(actor); p == nil {
			return ErrMissingPlayer
		}
		if dj := room.DJ(); dj != nil && dj.ID == actor {
			return ErrDJCannotGuess
		}
		if _, ok := room.Guesses[actor]; ok {
			return ErrAlreadyGuessed
		}
		room.Guesses[actor] = year

		if allNonDJGuessed(room) {
			e.resolveRound(room)
		}
		return nil
	})
}

// NextRound advances to the next round, rotating the DJ role, or ends
// the game when the round budget is spent.
func (e *Engine) NextRound(code domain.RoomCode, actor domain.PlayerID) error {
	return e.withRoom(code, actor, func(room *domain.Room) error {
		// polls race against each other here; a no-op keeps repeated
		// next_round calls harmless once the game is over
		if !room.Started || room.Status == domain.StatusGameOver {
			return nil
		}

		room.RoundIndex++
		if room.RoundsTotal > 0 && room.RoundIndex >= room.RoundsTotal {
			room.Status = domain.StatusGameOver
			room.Started = false
			e.recordCompletion(room)
			return nil
		}

		room.DJIndex = (room.DJIndex + 1) % len(room.Players)
		room.Guesses = make(map[domain.PlayerID]int)
		room.LastRoundPoints = make(map[domain.PlayerID]int)
		room.RoundStartedAt = nil
		room.WaitingForDJ = false
		room.Status = domain.StatusRound
		e.drawSong(room)
		return nil
	})
}

// ResetGame returns a finished or aborted game to the lobby, zeroing
// scores but keeping the players.
func (e *Engine) ResetGame(code domain.RoomCode, actor domain.PlayerID) error {
	return e.withRoom(code, actor, func(room *domain.Room) error {
		for _, p := range room.Players {
			room.Scores[p.ID] = 0
		}
		room.Status = domain.StatusLobby
		room.Started = false
		room.RoundIndex = 0
		room.RoundStartedAt = nil
		room.CurrentSong = nil
		room.UnusedSongs = e.catalog.SongsForCategory(room.Category)
		room.Guesses = make(map[domain.PlayerID]int)
		room.LastRoundPoints = make(map[domain.PlayerID]int)
		room.History = nil
		room.WaitingForDJ = false
		room.CompletionRecorded = false
		return nil
	})
}

// SetCategory switches the song category: host only, lobby only.
func (e *Engine) SetCategory(code domain.RoomCode, actor domain.PlayerID, category string) error {
	return e.withRoom(code, actor, func(room *domain.Room) error {
		if room.Started {
			return ErrAlreadyStarted
		}
		if actor != room.HostID {
			return ErrNotHost
		}
		if category == "" {
			category = catalog.DefaultCategory
		}
		if !e.catalog.Has(category) {
			return ErrBadCategory
		}
		room.Category = category
		room.UnusedSongs = e.catalog.SongsForCategory(category)
		room.CurrentSong = nil
		room.Guesses = make(map[domain.PlayerID]int)
		room.LastRoundPoints = make(map[domain.PlayerID]int)
		return nil
	})
}

// Leave removes a player. Leaving an unknown room is not an error; the
// protocol treats leave as best effort.
func (e *Engine) Leave(code domain.RoomCode, actor domain.PlayerID) error {
	room, ok := e.rooms.Lookup(code)
	if !ok {
		return nil
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()

	e.evictStale(room)
	e.maybeResolve(room)
	e.removePlayer(room, actor)
	if len(room.Players) == 0 {
		e.rooms.Delete(room.Code)
	}
	return nil
}

func requireActiveRound(room *domain.Room) error {
	if !room.Started || room.Status != domain.StatusRound || room.CurrentSong == nil {
		return ErrNoActiveRound
	}
	return nil
}

func requireDJ(room *domain.Room, actor domain.PlayerID) error {
	dj := room.DJ()
	if dj != nil && actor != "" && actor != dj.ID {
		return ErrNotDJ
	}
	return nil
}
