// Package domain contains entities without logic, just meta-data.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxPlayerNameLen = 36
	// DefaultPlayerName is used when a client joins without a name.
	DefaultPlayerName = "Spiller"
)

type PlayerID string

// Player is one participant of a room. LastSeen drives presence
// eviction; it is refreshed on every request the player makes.
type Player struct {
	ID        PlayerID  `json:"id"`
	Name      string    `json:"name"`
	LastSeen  time.Time `json:"-"`
	Connected bool      `json:"connected"`
}

// NewPlayer avoids raw literals in adapters and keeps construction obvious.
func NewPlayer(name string, now time.Time) *Player {
	if name == "" {
		name = DefaultPlayerName
	}
	if len(name) > MaxPlayerNameLen {
		name = name[:MaxPlayerNameLen]
	}
	return &Player{
		ID:        PlayerID(uuid.NewString()),
		Name:      name,
		LastSeen:  now,
		Connected: true,
	}
}
