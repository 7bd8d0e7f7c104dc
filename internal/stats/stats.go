// Package stats records coarse usage events: rooms created, games
// completed, distinct devices seen. Recording is fire and forget;
// failures are logged and swallowed, never surfaced to gameplay.
package stats

// Sink receives usage events. Implementations must never block the
// caller on failure.
type Sink interface {
	RecordRoomCreated()
	RecordGameCompleted()
	RecordDeviceSeen(id string)
}

// Nop discards every event. Used in tests and when no stats DSN is
// configured.
type Nop struct{}

func (Nop) RecordRoomCreated()         {}
func (Nop) RecordGameCompleted()       {}
func (Nop) RecordDeviceSeen(id string) {}
