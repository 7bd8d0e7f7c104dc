// Package catalog loads the song sets the game draws from. Sets are
// plain JSON files in the web directory: songs.json is the default
// "Standard" set, every songs_<name>.json adds a named category, and
// decade categories are derived from the Standard set so a room can
// play e.g. only 1990s songs.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbruun/musikquiz/internal/domain"
)

// DefaultCategory is the fallback for unknown or empty category names.
const DefaultCategory = "Standard"

const setFilePrefix = "songs_"

// Catalog is a read-only map of category name to song set.
type Catalog struct {
	sets map[string][]domain.Song
}

// New builds a catalog from already-loaded sets. Load is the usual
// file-based constructor; New exists for wiring and tests.
func New(sets map[string][]domain.Song) *Catalog {
	if sets == nil {
		sets = make(map[string][]domain.Song)
	}
	if _, ok := sets[DefaultCategory]; !ok {
		sets[DefaultCategory] = nil
	}
	return &Catalog{sets: sets}
}

// Load reads every song set under dir. A missing or malformed file
// degrades to an empty set; Load never fails.
func Load(dir string) *Catalog {
	c := &Catalog{sets: make(map[string][]domain.Song)}

	std, err := readSet(filepath.Join(dir, "songs.json"))
	if err != nil {
		log.Warn().Str("module", "catalog").Err(err).Msg("default song set unavailable")
	}
	c.sets[DefaultCategory] = std

	paths, _ := filepath.Glob(filepath.Join(dir, setFilePrefix+"*.json"))
	for _, path := range paths {
		name := filepath.Base(path)
		name = strings.TrimSuffix(strings.TrimPrefix(name, setFilePrefix), ".json")
		name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
		if name == "" {
			continue
		}
		songs, err := readSet(path)
		if err != nil {
			log.Warn().Str("module", "catalog").Str("category", name).Err(err).Msg("skipping song set")
			continue
		}
		c.sets[name] = songs
	}

	c.addDecades(std)

	log.Info().Str("module", "catalog").Int("categories", len(c.sets)).Int("standard_songs", len(std)).Msg("song catalog loaded")
	return c
}

func readSet(path string) ([]domain.Song, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var songs []domain.Song
	if err := json.Unmarshal(raw, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

// addDecades derives per-decade categories from the Standard set.
// Each decade gets two aliases, "1990" and "1990'erne"; explicit
// categories with the same name win.
func (c *Catalog) addDecades(std []domain.Song) {
	byDecade := make(map[int][]domain.Song)
	for _, s := range std {
		if s.Year <= 0 {
			continue
		}
		decade := (s.Year / 10) * 10
		byDecade[decade] = append(byDecade[decade], s)
	}
	for decade, songs := range byDecade {
		for _, key := range []string{fmt.Sprintf("%d", decade), fmt.Sprintf("%d'erne", decade)} {
			if _, ok := c.sets[key]; !ok {
				c.sets[key] = songs
			}
		}
	}
}

// SongsForCategory returns a fresh copy of the named set so callers can
// consume it as a draw pool. Unknown names fall back to Standard.
func (c *Catalog) SongsForCategory(name string) []domain.Song {
	if name == "" {
		name = DefaultCategory
	}
	songs := c.sets[name]
	if len(songs) == 0 {
		songs = c.sets[DefaultCategory]
	}
	out := make([]domain.Song, len(songs))
	copy(out, songs)
	return out
}

// Has reports whether name is a known category.
func (c *Catalog) Has(name string) bool {
	_, ok := c.sets[name]
	return ok
}

// CategoryNames returns all category names in display order: Standard
// first, then decades numerically, then the rest alphabetically.
func (c *Catalog) CategoryNames() []string {
	names := make([]string, 0, len(c.sets))
	for name := range c.sets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := categoryRank(names[i]), categoryRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func categoryRank(name string) int {
	if name == DefaultCategory {
		return 0
	}
	if len(name) == 4 && strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
		return 1
	}
	return 2
}
