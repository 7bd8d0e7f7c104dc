package domain

import (
	"sync"
	"time"
)

type RoomCode string

// RoomStatus is the round lifecycle phase of a room.
type RoomStatus string

const (
	StatusLobby       RoomStatus = "lobby"
	StatusRound       RoomStatus = "round"
	StatusRoundResult RoomStatus = "round_result"
	StatusGameOver    RoomStatus = "game_over"
)

// Room is one game session. All mutation goes through the game engine,
// which takes Mu for the full duration of an operation; rooms are
// independent units of mutation with no shared state between them.
type Room struct {
	Mu sync.Mutex

	Code    RoomCode
	Players []*Player
	HostID  PlayerID

	Status   RoomStatus
	Started  bool
	Category string

	// UnusedSongs is the draw pool for the active category, consumed
	// without replacement and refilled when exhausted.
	UnusedSongs []Song

	DJIndex     int
	CurrentSong *Song

	Guesses         map[PlayerID]int
	Scores          map[PlayerID]int
	LastRoundPoints map[PlayerID]int
	History         []RoundHistoryEntry

	RoundIndex  int
	RoundsTotal int

	// RoundStartedAt is nil until the DJ arms the round clock.
	RoundStartedAt *time.Time
	TimerSeconds   int

	// WaitingForDJ is set when the DJ slot changed hands because the
	// previous DJ left mid-game.
	WaitingForDJ bool

	// CompletionRecorded guards the one-shot game-completion stat, which
	// must fire exactly once even though game_over is observed repeatedly
	// across polls.
	CompletionRecorded bool
}

// DJ returns the current DJ, or nil for an empty room.
func (r *Room) DJ() *Player {
	if len(r.Players) == 0 || r.DJIndex < 0 || r.DJIndex >= len(r.Players) {
		return nil
	}
	return r.Players[r.DJIndex]
}

// PlayerByID returns the player and its position in the rotation order.
func (r *Room) PlayerByID(id PlayerID) (*Player, int) {
	for i, p := range r.Players {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// GuessRecord is one player's line in a round snapshot.
type GuessRecord struct {
	PlayerID   PlayerID `json:"player_id"`
	PlayerName string   `json:"player_name"`
	GuessYear  int      `json:"guess_year"`
	Points     int      `json:"points"`
}

// RoundHistoryEntry is an immutable snapshot of a concluded round.
// Guesses are sorted by player name.
type RoundHistoryEntry struct {
	RoundNumber int           `json:"round_number"`
	EndedAt     int64         `json:"ended_at"`
	DJID        PlayerID      `json:"dj_id"`
	DJName      string        `json:"dj_name"`
	Song        *Song         `json:"song"`
	Guesses     []GuessRecord `json:"guesses"`
}
