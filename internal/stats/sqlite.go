package stats

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS devices (
	id         TEXT PRIMARY KEY,
	first_seen INTEGER NOT NULL,
	last_seen  INTEGER NOT NULL
);
`

// Store is a sqlite-backed Sink. A single connection is enough; the
// write volume is one row per room or game.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the stats database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) bump(name string) {
	_, err := s.db.Exec(`
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		log.Debug().Str("module", "stats").Str("counter", name).Err(err).Msg("counter write failed")
	}
}

func (s *Store) RecordRoomCreated()   { s.bump("rooms_created") }
func (s *Store) RecordGameCompleted() { s.bump("games_completed") }

func (s *Store) RecordDeviceSeen(id string) {
	if id == "" {
		return
	}
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO devices (id, first_seen, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`, id, now, now)
	if err != nil {
		log.Debug().Str("module", "stats").Err(err).Msg("device write failed")
	}
}
