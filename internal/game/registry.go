package game

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tbruun/musikquiz/internal/domain"
)

const roomCodeLen = 4

// Registry owns the lifetime of every room. The map has its own lock;
// room state is guarded per room so rooms stay independent.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*domain.Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomCode]*domain.Room)}
}

// Create inserts the room built by build under a fresh unique code.
func (g *Registry) Create(build func(domain.RoomCode) *domain.Room) *domain.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	var code domain.RoomCode
	for {
		code = genCode(roomCodeLen)
		if _, ok := g.rooms[code]; !ok {
			break
		}
	}
	room := build(code)
	g.rooms[code] = room
	log.Info().Str("module", "game.registry").Str("room", string(code)).Msg("room created")
	return room
}

func (g *Registry) Lookup(code domain.RoomCode) (*domain.Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	return room, ok
}

func (g *Registry) Delete(code domain.RoomCode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, code)
	log.Info().Str("module", "game.registry").Str("room", string(code)).Msg("room deleted")
}

func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

func genCode(n int) domain.RoomCode {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = letters[rand.Intn(len(letters))]
	}
	return domain.RoomCode(buf)
}
