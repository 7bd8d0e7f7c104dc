package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbruun/musikquiz/internal/catalog"
	"github.com/tbruun/musikquiz/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type countingSink struct {
	roomsCreated   int
	gamesCompleted int
	devices        map[string]int
}

func newCountingSink() *countingSink {
	return &countingSink{devices: make(map[string]int)}
}

func (s *countingSink) RecordRoomCreated()         { s.roomsCreated++ }
func (s *countingSink) RecordGameCompleted()       { s.gamesCompleted++ }
func (s *countingSink) RecordDeviceSeen(id string) { s.devices[id]++ }

func testSongs(n int) []domain.Song {
	songs := make([]domain.Song, n)
	for i := range songs {
		songs[i] = domain.Song{
			Title:    "Song",
			Artist:   "Artist",
			Year:     1980 + i,
			Category: catalog.DefaultCategory,
		}
	}
	return songs
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *countingSink) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := newCountingSink()
	cat := catalog.New(map[string][]domain.Song{
		catalog.DefaultCategory: testSongs(40),
	})
	e := NewEngine(cat, sink, Config{
		PlayerTimeout: 30 * time.Second,
		DefaultRounds: 10,
		DefaultTimer:  20,
	})
	e.now = clk.Now
	return e, clk, sink
}

// newRoom creates a room with the given player names; the first one is
// the host.
func newRoom(t *testing.T, e *Engine, names ...string) (domain.RoomCode, []domain.PlayerID) {
	t.Helper()
	require.NotEmpty(t, names)
	code, hostID := e.CreateRoom(names[0], "", 0, 0)
	ids := []domain.PlayerID{hostID}
	for _, name := range names[1:] {
		id, err := e.Join(code, name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return code, ids
}

func mustRoom(t *testing.T, e *Engine, code domain.RoomCode) *domain.Room {
	t.Helper()
	room, ok := e.rooms.Lookup(code)
	require.True(t, ok, "room %s should exist", code)
	return room
}

func setSongYear(t *testing.T, e *Engine, code domain.RoomCode, year int) {
	t.Helper()
	room := mustRoom(t, e, code)
	room.Mu.Lock()
	room.CurrentSong = &domain.Song{Title: "Fixture", Artist: "Fixture", Year: year}
	room.Mu.Unlock()
}

func TestPointsForGuess(t *testing.T) {
	tests := []struct {
		guess, correct, want int
	}{
		{2005, 2005, 3},
		{2004, 2005, 2},
		{2006, 2005, 2},
		{2003, 2005, 1},
		{2007, 2005, 1},
		{2002, 2005, 0},
		{1970, 2005, 0},
		{2050, 2005, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PointsForGuess(tc.guess, tc.correct), "guess %d correct %d", tc.guess, tc.correct)
	}
}

func TestFairRounds(t *testing.T) {
	tests := []struct {
		requested, players, want int
	}{
		{1, 1, 1},
		{10, 1, 10},
		{3, 2, 4},
		{3, 3, 3},
		{10, 3, 12},
		{1, 4, 4},
		{7, 5, 10},
		{0, 3, 3},
	}
	for _, tc := range tests {
		got := fairRounds(tc.requested, tc.players)
		assert.Equal(t, tc.want, got, "requested %d players %d", tc.requested, tc.players)
		assert.Zero(t, got%tc.players)
		// smallest such multiple
		if got > tc.players {
			assert.Less(t, got-tc.players, max(tc.requested, tc.players))
		}
	}
}

func TestStartGameRoundsFairness(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")

	require.NoError(t, e.StartGame(code, ids[0], 3))

	room := mustRoom(t, e, code)
	assert.Equal(t, 3, room.RoundsTotal)
	assert.Equal(t, domain.StatusRound, room.Status)
	assert.True(t, room.Started)
	assert.Equal(t, 0, room.RoundIndex)
	assert.Equal(t, 0, room.DJIndex)
	assert.NotNil(t, room.CurrentSong)
	assert.Nil(t, room.RoundStartedAt, "round clock must not run until the DJ arms it")
}

func TestStartGameHostOnly(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	err := e.StartGame(code, ids[1], 4)
	assert.ErrorIs(t, err, ErrOnlyHostCanStart)

	room := mustRoom(t, e, code)
	assert.False(t, room.Started)
}

func TestScoringScenario(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")
	a, b, c := ids[0], ids[1], ids[2]

	require.NoError(t, e.StartGame(code, a, 3))
	setSongYear(t, e, code, 2005)

	require.NoError(t, e.SubmitGuess(code, b, 2005))

	room := mustRoom(t, e, code)
	assert.Equal(t, domain.StatusRound, room.Status, "round stays open until every guesser answered")

	require.NoError(t, e.SubmitGuess(code, c, 2004))

	assert.Equal(t, domain.StatusRoundResult, room.Status)
	assert.Equal(t, 3, room.Scores[b])
	assert.Equal(t, 2, room.Scores[c])
	assert.Equal(t, 0, room.Scores[a])
	assert.Equal(t, 3, room.LastRoundPoints[b])
	assert.Equal(t, 2, room.LastRoundPoints[c])
	assert.Equal(t, 0, room.LastRoundPoints[a])

	require.Len(t, room.History, 1)
	entry := room.History[0]
	assert.Equal(t, 1, entry.RoundNumber)
	assert.Equal(t, a, entry.DJID)
	require.Len(t, entry.Guesses, 2)
	assert.Equal(t, "B", entry.Guesses[0].PlayerName, "history guesses sorted by player name")
	assert.Equal(t, "C", entry.Guesses[1].PlayerName)
	assert.Equal(t, 3, entry.Guesses[0].Points)
	assert.Equal(t, 2, entry.Guesses[1].Points)
}

func TestDJCannotGuess(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))

	err := e.SubmitGuess(code, ids[0], 1999)
	assert.ErrorIs(t, err, ErrDJCannotGuess)

	room := mustRoom(t, e, code)
	assert.NotContains(t, room.Guesses, ids[0])
}

func TestSubmitGuessRejections(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")

	require.NoError(t, e.StartGame(code, ids[0], 3))

	require.NoError(t, e.SubmitGuess(code, ids[1], 1999))
	assert.ErrorIs(t, e.SubmitGuess(code, ids[1], 2001), ErrAlreadyGuessed)

	assert.ErrorIs(t, e.SubmitGuess(code, "", 1999), ErrMissingPlayer)
	assert.ErrorIs(t, e.SubmitGuess(code, "nobody", 1999), ErrMissingPlayer)

	// close the round, then guessing is a conflict
	require.NoError(t, e.SubmitGuess(code, ids[2], 1999))
	room := mustRoom(t, e, code)
	require.Equal(t, domain.StatusRoundResult, room.Status)
	assert.ErrorIs(t, e.SubmitGuess(code, ids[1], 2001), ErrNoActiveRound)
}

func TestRoundResolvesOnTimeout(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))

	// no resolution while the clock is unarmed, however long we wait
	clk.Advance(25 * time.Second)
	snap, err := e.State(code, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRound, snap.Status)

	_, err = e.StartTimer(code, ids[0])
	require.NoError(t, err)

	clk.Advance(19 * time.Second)
	snap, err = e.State(code, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRound, snap.Status)

	clk.Advance(1 * time.Second)
	snap, err = e.State(code, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRoundResult, snap.Status)
	assert.Equal(t, 0, snap.Scores[ids[0]])
	assert.Equal(t, 0, snap.Scores[ids[1]])

	// a round resolves at most once: further polls must not re-archive
	room := mustRoom(t, e, code)
	require.Len(t, room.History, 1)
	_, err = e.State(code, ids[1])
	require.NoError(t, err)
	assert.Len(t, room.History, 1)
}

func TestLateGuessRejectedAfterTimeout(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	setSongYear(t, e, code, 2005)
	_, err := e.StartTimer(code, ids[0])
	require.NoError(t, err)

	// nobody polled in the meantime; the expired round settles on the
	// guess request itself, which then bounces off the closed round
	clk.Advance(25 * time.Second)
	err = e.SubmitGuess(code, ids[1], 2005)
	assert.ErrorIs(t, err, ErrNoActiveRound)

	room := mustRoom(t, e, code)
	assert.Equal(t, domain.StatusRoundResult, room.Status)
	assert.Equal(t, 0, room.Scores[ids[1]], "a late guess must not pay out")
	assert.Len(t, room.History, 1)
}

func TestNextRoundSettlesExpiredRoundFirst(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 4))
	_, err := e.StartTimer(code, ids[0])
	require.NoError(t, err)

	clk.Advance(25 * time.Second)
	require.NoError(t, e.NextRound(code, ids[0]))

	room := mustRoom(t, e, code)
	assert.Len(t, room.History, 1, "the expired round is archived before advancing")
	assert.Equal(t, 1, room.RoundIndex)
	assert.Equal(t, domain.StatusRound, room.Status)
	assert.Nil(t, room.RoundStartedAt)
}

func TestStartTimerGuards(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	_, err := e.StartTimer(code, ids[0])
	assert.ErrorIs(t, err, ErrNoActiveRound, "no timer in the lobby")

	require.NoError(t, e.StartGame(code, ids[0], 2))

	_, err = e.StartTimer(code, ids[1])
	assert.ErrorIs(t, err, ErrNotDJ)

	startedAt, err := e.StartTimer(code, ids[0])
	require.NoError(t, err)
	assert.Positive(t, startedAt)

	// re-arming resets the clock rather than failing
	_, err = e.StartTimer(code, ids[0])
	assert.NoError(t, err)
}

func TestDJRotationRoundRobin(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 4))
	room := mustRoom(t, e, code)
	require.Equal(t, 4, room.RoundsTotal)

	djCounts := map[int]int{}
	var order []int
	for room.Status == domain.StatusRound {
		djCounts[room.DJIndex]++
		order = append(order, room.DJIndex)
		require.NoError(t, e.NextRound(code, ids[0]))
	}

	assert.Equal(t, domain.StatusGameOver, room.Status)
	assert.False(t, room.Started)
	assert.Equal(t, 2, djCounts[0])
	assert.Equal(t, 2, djCounts[1])
	assert.Equal(t, []int{0, 1, 0, 1}, order, "strict alternation")
}

func TestDJLeavesMidRound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")
	a, b, c := ids[0], ids[1], ids[2]

	require.NoError(t, e.StartGame(code, a, 3))
	require.NoError(t, e.NextRound(code, a)) // B is DJ now
	room := mustRoom(t, e, code)
	require.Equal(t, 1, room.DJIndex)
	require.Equal(t, b, room.DJ().ID)

	require.NoError(t, e.Leave(code, b))

	require.Len(t, room.Players, 2)
	assert.Equal(t, a, room.Players[0].ID)
	assert.Equal(t, c, room.Players[1].ID)
	assert.Equal(t, 1, room.DJIndex, "new DJ occupies the departed DJ's slot")
	assert.Equal(t, c, room.DJ().ID)
	assert.True(t, room.WaitingForDJ)
	assert.Equal(t, domain.StatusRoundResult, room.Status, "in-flight round is closed")

	assert.NotContains(t, room.Scores, b)
	assert.NotContains(t, room.Guesses, b)
	assert.NotContains(t, room.LastRoundPoints, b)

	remaining := room.RoundsTotal - room.RoundIndex
	assert.Zero(t, remaining%len(room.Players), "remaining rounds stay fair")
	assert.LessOrEqual(t, room.RoundIndex, room.RoundsTotal)
}

func TestDepartureBeforeDJDecrementsIndex(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")

	require.NoError(t, e.StartGame(code, ids[0], 3))
	require.NoError(t, e.NextRound(code, ids[0]))
	room := mustRoom(t, e, code)
	require.Equal(t, 1, room.DJIndex)

	require.NoError(t, e.Leave(code, ids[0])) // host, before the DJ

	assert.Equal(t, 0, room.DJIndex)
	assert.Equal(t, ids[1], room.DJ().ID, "same logical DJ after compaction")
	assert.Equal(t, ids[1], room.HostID, "first remaining player promoted to host")
	assert.False(t, room.WaitingForDJ)
}

func TestDepartureRebalanceForcesGameOver(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")

	require.NoError(t, e.StartGame(code, ids[0], 3))
	require.NoError(t, e.NextRound(code, ids[0]))
	require.NoError(t, e.NextRound(code, ids[0]))
	room := mustRoom(t, e, code)
	require.Equal(t, 2, room.RoundIndex)

	// one round left for two survivors; the floor swallows it and the
	// game can never reach a fair total, so it ends here
	require.NoError(t, e.Leave(code, ids[2]))

	assert.Equal(t, domain.StatusGameOver, room.Status)
	assert.False(t, room.Started)
	assert.Equal(t, room.RoundIndex, room.RoundsTotal)
}

func TestMidGameJoinExtendsRounds(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	require.NoError(t, e.NextRound(code, ids[0]))

	c, err := e.Join(code, "C")
	require.NoError(t, err)

	room := mustRoom(t, e, code)
	assert.Equal(t, 4, room.RoundsTotal, "one remaining round grows to a full rotation of three")
	remaining := room.RoundsTotal - room.RoundIndex
	assert.Zero(t, remaining%len(room.Players), "remaining rounds stay fair after a join")
	assert.Equal(t, 0, room.Scores[c])
}

func TestLastPlayerLeavingDeletesRoom(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.Leave(code, ids[0]))
	_, ok := e.rooms.Lookup(code)
	assert.True(t, ok)

	require.NoError(t, e.Leave(code, ids[1]))
	_, ok = e.rooms.Lookup(code)
	assert.False(t, ok, "room deleted the instant it empties")

	assert.NoError(t, e.Leave(code, ids[1]), "leaving a vanished room is fine")
}

func TestPresenceEviction(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")
	a, b := ids[0], ids[1]

	// A keeps polling, B goes silent
	clk.Advance(15 * time.Second)
	_, err := e.State(code, a)
	require.NoError(t, err)

	clk.Advance(16 * time.Second)
	snap, err := e.State(code, a)
	require.NoError(t, err)

	require.Len(t, snap.Players, 1)
	assert.Equal(t, a, snap.Players[0].ID)
	room := mustRoom(t, e, code)
	assert.NotContains(t, room.Scores, b)
}

func TestPresenceEvictionEmptiesRoom(t *testing.T) {
	e, clk, _ := newTestEngine(t)
	code, _ := newRoom(t, e, "A")

	clk.Advance(31 * time.Second)
	// even the actor is stale by now; maintenance empties and deletes
	_, err := e.State(code, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, ok := e.rooms.Lookup(code)
	assert.False(t, ok)
}

func TestSkipSongPrefersSameCategory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")

	require.NoError(t, e.StartGame(code, ids[0], 3))
	require.NoError(t, e.SubmitGuess(code, ids[1], 1999))

	room := mustRoom(t, e, code)
	room.Mu.Lock()
	room.CurrentSong = &domain.Song{Title: "old", Category: "X", Year: 1990}
	room.UnusedSongs = []domain.Song{
		{Title: "other", Category: "Y", Year: 1991},
		{Title: "match", Category: "X", Year: 1992},
	}
	now := e.now()
	room.RoundStartedAt = &now
	room.Mu.Unlock()

	snap, err := e.SkipSong(code, ids[0])
	require.NoError(t, err)

	assert.Equal(t, "X", snap.CurrentSong.Category)
	assert.Equal(t, "match", snap.CurrentSong.Title)
	assert.Empty(t, snap.Guesses, "skip clears pending guesses")
	assert.Nil(t, snap.RoundStartedAt, "skip disarms the round clock")
	assert.Equal(t, 0, snap.RoundIndex, "skip does not consume a round")
}

func TestSkipSongFallsBackToAnyCategory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	room := mustRoom(t, e, code)
	room.Mu.Lock()
	room.CurrentSong = &domain.Song{Title: "old", Category: "X", Year: 1990}
	room.UnusedSongs = []domain.Song{{Title: "only", Category: "Y", Year: 1991}}
	room.Mu.Unlock()

	snap, err := e.SkipSong(code, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "only", snap.CurrentSong.Title)
}

func TestSkipSongDJOnly(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	_, err := e.SkipSong(code, ids[1])
	assert.ErrorIs(t, err, ErrNotDJ)
}

func TestGameCompletionRecordedOnce(t *testing.T) {
	e, _, sink := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	require.NoError(t, e.NextRound(code, ids[0]))
	require.NoError(t, e.NextRound(code, ids[0]))

	room := mustRoom(t, e, code)
	require.Equal(t, domain.StatusGameOver, room.Status)
	assert.Equal(t, 1, sink.gamesCompleted)

	// game_over is observed repeatedly across polls; the stat is not
	for i := 0; i < 3; i++ {
		_, err := e.State(code, ids[0])
		require.NoError(t, err)
		require.NoError(t, e.NextRound(code, ids[0]))
	}
	assert.Equal(t, 1, sink.gamesCompleted)

	// a fresh game on the same room counts again
	require.NoError(t, e.ResetGame(code, ids[0]))
	require.NoError(t, e.StartGame(code, ids[0], 2))
	require.NoError(t, e.NextRound(code, ids[0]))
	require.NoError(t, e.NextRound(code, ids[0]))
	assert.Equal(t, 2, sink.gamesCompleted)
}

func TestResetGame(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	setSongYear(t, e, code, 2000)
	require.NoError(t, e.SubmitGuess(code, ids[1], 2000))

	require.NoError(t, e.ResetGame(code, ids[1]))

	room := mustRoom(t, e, code)
	assert.Equal(t, domain.StatusLobby, room.Status)
	assert.False(t, room.Started)
	assert.Equal(t, 0, room.RoundIndex)
	assert.Nil(t, room.CurrentSong)
	assert.Empty(t, room.History)
	for _, id := range ids {
		assert.Equal(t, 0, room.Scores[id])
	}
}

func TestSetCategory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	cat := catalog.New(map[string][]domain.Song{
		catalog.DefaultCategory: testSongs(5),
		"Film":                  {{Title: "theme", Category: "Film", Year: 1977}},
	})
	e.catalog = cat

	code, ids := newRoom(t, e, "A", "B")

	assert.ErrorIs(t, e.SetCategory(code, ids[1], "Film"), ErrNotHost)
	assert.ErrorIs(t, e.SetCategory(code, ids[0], "Jazz"), ErrBadCategory)

	require.NoError(t, e.SetCategory(code, ids[0], "Film"))
	room := mustRoom(t, e, code)
	assert.Equal(t, "Film", room.Category)
	require.Len(t, room.UnusedSongs, 1)
	assert.Nil(t, room.CurrentSong)

	require.NoError(t, e.StartGame(code, ids[0], 2))
	assert.ErrorIs(t, e.SetCategory(code, ids[0], "Film"), ErrAlreadyStarted)
}

func TestRoomNotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.State("ZZZZ", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = e.Join("ZZZZ", "A")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, e.NextRound("ZZZZ", ""), ErrRoomNotFound)
}

func TestThreePlayerFullGameEachDJOnce(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B", "C")

	require.NoError(t, e.StartGame(code, ids[0], 3))
	room := mustRoom(t, e, code)
	require.Equal(t, 3, room.RoundsTotal)

	djSeen := map[domain.PlayerID]int{}
	for room.Status == domain.StatusRound {
		djSeen[room.DJ().ID]++
		require.NoError(t, e.NextRound(code, ids[0]))
	}

	assert.Equal(t, domain.StatusGameOver, room.Status)
	for _, id := range ids {
		assert.Equal(t, 1, djSeen[id], "every player DJs exactly once")
	}
}

func TestDrawPoolConsumedWithoutReplacement(t *testing.T) {
	e, _, _ := newTestEngine(t)
	code, ids := newRoom(t, e, "A", "B")

	require.NoError(t, e.StartGame(code, ids[0], 2))
	room := mustRoom(t, e, code)
	assert.Len(t, room.UnusedSongs, 39, "one song drawn from a 40-song pool")
}
