package game

import (
	"time"

	"github.com/tbruun/musikquiz/internal/domain"
)

// PlayerView is the player as shown to clients; presence timestamps
// stay server side.
type PlayerView struct {
	ID        domain.PlayerID `json:"id"`
	Name      string          `json:"name"`
	Connected bool            `json:"connected"`
}

// Snapshot is the poll response: the full observable room state. The
// draw pool is deliberately absent so clients cannot peek at upcoming
// songs.
type Snapshot struct {
	RoomCode            domain.RoomCode            `json:"room_code"`
	Players             []PlayerView               `json:"players"`
	HostID              domain.PlayerID            `json:"host_id"`
	Status              domain.RoomStatus          `json:"status"`
	Started             bool                       `json:"started"`
	Category            string                     `json:"category"`
	DJIndex             int                        `json:"dj_index"`
	WaitingForDJ        bool                       `json:"waiting_for_dj"`
	CurrentSong         *domain.Song               `json:"current_song"`
	Guesses             map[domain.PlayerID]int    `json:"guesses"`
	Scores              map[domain.PlayerID]int    `json:"scores"`
	LastRoundPoints     map[domain.PlayerID]int    `json:"last_round_points"`
	History             []domain.RoundHistoryEntry `json:"history"`
	RoundIndex          int                        `json:"round_index"`
	RoundsTotal         int                        `json:"rounds_total"`
	RoundStartedAt      *float64                   `json:"round_started_at"`
	TimerSeconds        int                        `json:"timer_seconds"`
	AvailableCategories []string                   `json:"available_categories"`
}

// snapshot copies the room into a Snapshot. Maps and slices are
// copied so the caller can serialize outside the room lock.
func (e *Engine) snapshot(room *domain.Room) *Snapshot {
	players := make([]PlayerView, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, PlayerView{ID: p.ID, Name: p.Name, Connected: p.Connected})
	}

	var startedAt *float64
	if room.RoundStartedAt != nil {
		v := epochSeconds(*room.RoundStartedAt)
		startedAt = &v
	}

	var song *domain.Song
	if room.CurrentSong != nil {
		s := *room.CurrentSong
		song = &s
	}

	history := make([]domain.RoundHistoryEntry, len(room.History))
	copy(history, room.History)

	return &Snapshot{
		RoomCode:            room.Code,
		Players:             players,
		HostID:              room.HostID,
		Status:              room.Status,
		Started:             room.Started,
		Category:            room.Category,
		DJIndex:             room.DJIndex,
		WaitingForDJ:        room.WaitingForDJ,
		CurrentSong:         song,
		Guesses:             copyIntMap(room.Guesses),
		Scores:              copyIntMap(room.Scores),
		LastRoundPoints:     copyIntMap(room.LastRoundPoints),
		History:             history,
		RoundIndex:          room.RoundIndex,
		RoundsTotal:         room.RoundsTotal,
		RoundStartedAt:      startedAt,
		TimerSeconds:        room.TimerSeconds,
		AvailableCategories: e.catalog.CategoryNames(),
	}
}

func copyIntMap(src map[domain.PlayerID]int) map[domain.PlayerID]int {
	out := make(map[domain.PlayerID]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
