package game

import (
	"math/rand"
	"sort"

	"github.com/tbruun/musikquiz/internal/domain"
)

// PointsForGuess scores one guess by absolute year distance:
// exact 3, one off 2, two off 1, otherwise 0.
func PointsForGuess(guess, correct int) int {
	d := guess - correct
	if d < 0 {
		d = -d
	}
	switch d {
	case 0:
		return 3
	case 1:
		return 2
	case 2:
		return 1
	default:
		return 0
	}
}

// allNonDJGuessed reports whether every guesser has submitted. A round
// can only complete this way with at least two players in the room.
func allNonDJGuessed(room *domain.Room) bool {
	if room.Status != domain.StatusRound {
		return false
	}
	dj := room.DJ()
	if dj == nil {
		return false
	}
	for _, p := range room.Players {
		if p.ID == dj.ID {
			continue
		}
		if _, ok := room.Guesses[p.ID]; !ok {
			return false
		}
	}
	return len(room.Players) >= 2
}

// maybeResolve ends the round if every guesser has answered or the
// armed round clock has run out. Called at the top of every read and
// mutate path; this is the only place time is compared.
func (e *Engine) maybeResolve(room *domain.Room) {
	if allNonDJGuessed(room) {
		e.resolveRound(room)
		return
	}
	if room.Status != domain.StatusRound || room.RoundStartedAt == nil {
		return
	}
	elapsed := e.now().Sub(*room.RoundStartedAt)
	if elapsed.Seconds() >= float64(room.TimerSeconds) {
		e.resolveRound(room)
	}
}

// resolveRound is the single authority for ending a round: it scores
// every player (missing guess counts zero), archives the round and
// moves the room to round_result. Callers guard the status so a round
// never resolves twice.
func (e *Engine) resolveRound(room *domain.Room) {
	if room.Status != domain.StatusRound || room.CurrentSong == nil {
		return
	}
	correct := room.CurrentSong.Year

	lastPoints := make(map[domain.PlayerID]int, len(room.Players))
	for _, p := range room.Players {
		guess, ok := room.Guesses[p.ID]
		if !ok {
			lastPoints[p.ID] = 0
			continue
		}
		pts := PointsForGuess(guess, correct)
		lastPoints[p.ID] = pts
		room.Scores[p.ID] += pts
	}
	room.LastRoundPoints = lastPoints

	e.archiveRound(room)

	room.Status = domain.StatusRoundResult
	room.RoundStartedAt = nil
}

// archiveRound appends the immutable history snapshot for the round
// being resolved. Only players who actually guessed appear, sorted by
// name.
func (e *Engine) archiveRound(room *domain.Room) {
	names := make(map[domain.PlayerID]string, len(room.Players))
	for _, p := range room.Players {
		names[p.ID] = p.Name
	}

	guesses := make([]domain.GuessRecord, 0, len(room.Guesses))
	for pid, year := range room.Guesses {
		name, ok := names[pid]
		if !ok {
			name = string(pid)
		}
		guesses = append(guesses, domain.GuessRecord{
			PlayerID:   pid,
			PlayerName: name,
			GuessYear:  year,
			Points:     room.LastRoundPoints[pid],
		})
	}
	sort.Slice(guesses, func(i, j int) bool { return guesses[i].PlayerName < guesses[j].PlayerName })

	var song *domain.Song
	if room.CurrentSong != nil {
		s := *room.CurrentSong
		song = &s
	}

	entry := domain.RoundHistoryEntry{
		RoundNumber: room.RoundIndex + 1,
		EndedAt:     e.now().Unix(),
		DJID:        room.DJ().ID,
		DJName:      room.DJ().Name,
		Song:        song,
		Guesses:     guesses,
	}
	room.History = append(room.History, entry)
}

// refillPool repopulates an exhausted draw pool from the room's
// category and reshuffles it.
func (e *Engine) refillPool(room *domain.Room) {
	if len(room.UnusedSongs) > 0 {
		return
	}
	room.UnusedSongs = e.catalog.SongsForCategory(room.Category)
	rand.Shuffle(len(room.UnusedSongs), func(i, j int) {
		room.UnusedSongs[i], room.UnusedSongs[j] = room.UnusedSongs[j], room.UnusedSongs[i]
	})
}

// drawSong takes one song uniformly at random without replacement.
// With an empty catalog the room simply gets no song.
func (e *Engine) drawSong(room *domain.Room) {
	e.refillPool(room)
	if len(room.UnusedSongs) == 0 {
		room.CurrentSong = nil
		return
	}
	i := rand.Intn(len(room.UnusedSongs))
	song := room.UnusedSongs[i]
	room.UnusedSongs = append(room.UnusedSongs[:i], room.UnusedSongs[i+1:]...)
	room.CurrentSong = &song
}

// redrawSameCategory replaces the current song, preferring the same
// category as the one being skipped. It tries a bounded number of
// draws before falling back to any song from the full category pool.
func (e *Engine) redrawSameCategory(room *domain.Room) {
	want := ""
	if room.CurrentSong != nil {
		want = room.CurrentSong.Category
	}
	e.refillPool(room)

	var picked *domain.Song
	maxDraws := len(room.UnusedSongs) + 5
	for attempt := 0; attempt < maxDraws; attempt++ {
		if len(room.UnusedSongs) == 0 {
			break
		}
		candidate := room.UnusedSongs[len(room.UnusedSongs)-1]
		room.UnusedSongs = room.UnusedSongs[:len(room.UnusedSongs)-1]
		if want == "" || candidate.Category == want {
			picked = &candidate
			break
		}
		// wrong category goes back to the front of the pool
		room.UnusedSongs = append([]domain.Song{candidate}, room.UnusedSongs...)
	}

	if picked == nil {
		if n := len(room.UnusedSongs); n > 0 {
			candidate := room.UnusedSongs[n-1]
			room.UnusedSongs = room.UnusedSongs[:n-1]
			picked = &candidate
		} else if full := e.catalog.SongsForCategory(room.Category); len(full) > 0 {
			candidate := full[rand.Intn(len(full))]
			picked = &candidate
		}
	}

	if picked != nil {
		room.CurrentSong = picked
	}
	room.Guesses = make(map[domain.PlayerID]int)
	room.LastRoundPoints = make(map[domain.PlayerID]int)
	room.RoundStartedAt = nil
}
