package rooms_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/outbox"
	"github.com/mcdev12/escaperoom/go/internal/players"
	"github.com/mcdev12/escaperoom/go/internal/rooms"
	"github.com/mcdev12/escaperoom/go/internal/session"
	"github.com/mcdev12/escaperoom/go/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "open-sesame"

type fixture struct {
	clock    *clockwork.FakeClock
	store    *memory.Store
	sessions *session.App
	players  *players.App
	app      *rooms.App
	master   string
}

func newFixture(t *testing.T, mutate ...func(*models.Rules)) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	rules := models.DefaultRules()
	rules.TotalEnigmas = 3
	for _, m := range mutate {
		m(&rules)
	}

	fc := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))
	store := memory.New(string(hash))
	authority := clock.NewAuthority(fc)
	emitter := outbox.NewApp(store, fc)
	sessions := session.NewApp(store, authority, emitter, rules)

	res, err := sessions.Login(context.Background(), password)
	require.NoError(t, err)

	return &fixture{
		clock:    fc,
		store:    store,
		sessions: sessions,
		players:  players.NewApp(store, sessions, authority, emitter, rules),
		app:      rooms.NewApp(store, store, sessions, authority, emitter, rules),
		master:   res.Session.Token,
	}
}

func (f *fixture) join(t *testing.T, nickname string, room *rooms.RoomView) *models.Player {
	t.Helper()
	ctx := context.Background()
	res, err := f.players.Join(ctx, nickname)
	require.NoError(t, err)
	if room != nil {
		require.NoError(t, f.app.AssignPlayer(ctx, f.master, res.Player.ID, &room.ID))
	}
	return res.Player
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	pending, err := f.store.FetchUnsentOutbox(context.Background(), 1000)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, e := range pending {
		types = append(types, e.EventType)
	}
	return types
}

func (f *fixture) createRoom(t *testing.T, name string, maxPlayers int) *rooms.RoomView {
	t.Helper()
	room, err := f.app.CreateRoom(context.Background(), f.master, rooms.CreateRoomRequest{Name: name, MaxPlayers: maxPlayers})
	require.NoError(t, err)
	return room
}

func (f *fixture) startGame(t *testing.T) {
	t.Helper()
	_, err := f.sessions.StartGame(context.Background(), f.master, 60)
	require.NoError(t, err)
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.app.CreateRoom(ctx, f.master, rooms.CreateRoomRequest{Name: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.app.CreateRoom(ctx, f.master, rooms.CreateRoomRequest{Name: "Red", MaxPlayers: -1})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.app.CreateRoom(ctx, "missing", rooms.CreateRoomRequest{Name: "Red"})
	assert.ErrorIs(t, err, models.ErrAuth)

	room := f.createRoom(t, "Red", 0)
	assert.Equal(t, "Red", room.Name)
	assert.Equal(t, models.DefaultRules().DefaultMaxPlayers, room.MaxPlayers)
	assert.Len(t, room.Code, 6)
	assert.False(t, room.IsBlocked)

	list, err := f.app.GetRooms(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, room.ID, list[0].ID)
}

func TestAssignPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room := f.createRoom(t, "Red", 1)

	alice := f.join(t, "alice", room)
	bob := f.join(t, "bob", nil)

	err := f.app.AssignPlayer(ctx, f.master, bob.ID, &room.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState, "room is full")

	require.NoError(t, f.app.AssignPlayer(ctx, f.master, alice.ID, &room.ID), "reassigning to the same room is a no-op")

	require.NoError(t, f.app.AssignPlayer(ctx, f.master, alice.ID, nil))
	require.NoError(t, f.app.AssignPlayer(ctx, f.master, bob.ID, &room.ID))

	list, err := f.app.GetRooms(ctx, f.master)
	require.NoError(t, err)
	assert.Equal(t, 1, list[0].PlayerCount)
}

func TestMarkEnigmaSolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room := f.createRoom(t, "Red", 4)
	alice := f.join(t, "alice", room)
	bob := f.join(t, "bob", room)

	err := f.app.MarkEnigmaSolved(ctx, alice.Token, 1)
	assert.ErrorIs(t, err, models.ErrInvalidState, "no round running")

	f.startGame(t)

	assert.ErrorIs(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 0), models.ErrInvalidArgument)
	assert.ErrorIs(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 4), models.ErrInvalidArgument)
	assert.ErrorIs(t, f.app.MarkEnigmaSolved(ctx, "missing", 1), models.ErrAuth)

	require.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 2))
	require.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 2), "solving twice is idempotent")

	status, err := f.app.GetRoomStatus(ctx, bob.Token)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, status.SolvedEnigmas, "teammates share room progress")
	assert.False(t, status.AllEnigmasSolved)

	board, err := f.players.GetPlayers(ctx, f.master, nil)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "alice", board[0].Nickname)
	assert.Equal(t, 100, board[0].Score)
	assert.Equal(t, 0, board[1].Score)
}

func TestMarkFinalSolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room := f.createRoom(t, "Red", 4)
	alice := f.join(t, "alice", room)
	bob := f.join(t, "bob", room)
	f.startGame(t)

	err := f.app.MarkFinalSolved(ctx, alice.Token)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	require.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 1))
	require.NoError(t, f.app.MarkEnigmaSolved(ctx, bob.Token, 2))
	f.clock.Advance(time.Minute)
	require.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 3))

	status, err := f.app.GetRoomStatus(ctx, bob.Token)
	require.NoError(t, err)
	assert.True(t, status.AllEnigmasSolved)

	require.NoError(t, f.app.MarkFinalSolved(ctx, bob.Token))
	require.NoError(t, f.app.MarkFinalSolved(ctx, bob.Token))

	status, err = f.app.GetRoomStatus(ctx, alice.Token)
	require.NoError(t, err)
	assert.True(t, status.FinalSolved)

	require.NoError(t, f.app.MarkFinalSolved(ctx, alice.Token), "room already finished")

	board, err := f.players.GetPlayers(ctx, f.master, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", board[0].Nickname)
	assert.Equal(t, 100+500, board[0].Score)
	assert.Equal(t, "alice", board[1].Nickname)
	assert.Equal(t, 200, board[1].Score)
}

func TestCompletionTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.join(t, "alice", nil)
	f.startGame(t)

	for enigma := 1; enigma <= 3; enigma++ {
		f.clock.Advance(time.Minute)
		require.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, enigma))
	}

	board, err := f.players.GetPlayers(ctx, f.master, nil)
	require.NoError(t, err)
	require.NotNil(t, board[0].CompletedAt)
	assert.Equal(t, f.clock.Now().UTC(), *board[0].CompletedAt)
}

func TestConcurrentSolvesUnion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(r *models.Rules) { r.TotalEnigmas = 10 })
	room := f.createRoom(t, "Red", 4)
	alice := f.join(t, "alice", room)
	f.startGame(t)

	solveAll := func(workers int) {
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				// every worker covers 1..10 from a different starting point
				for i := 0; i < 10; i++ {
					enigma := (offset+i)%10 + 1
					assert.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, enigma))
				}
			}(w)
		}
		wg.Wait()
	}

	solveAll(20)

	list, err := f.store.ListPlayers(ctx, alice.SessionID, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, list[0].SolvedEnigmas)
	require.NotNil(t, list[0].CompletedAt)
	completedAt := *list[0].CompletedAt

	solved := 0
	for _, eventType := range f.eventTypes(t) {
		if eventType == events.EnigmaSolved {
			solved++
		}
	}
	assert.Equal(t, 10, solved, "each enigma is credited once")

	f.clock.Advance(time.Minute)
	solveAll(5)

	list, err = f.store.ListPlayers(ctx, alice.SessionID, nil)
	require.NoError(t, err)
	require.NotNil(t, list[0].CompletedAt)
	assert.Equal(t, completedAt, *list[0].CompletedAt, "completion time is set once")

	status, err := f.app.GetRoomStatus(ctx, alice.Token)
	require.NoError(t, err)
	assert.True(t, status.AllEnigmasSolved)
}

func TestBlockRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room := f.createRoom(t, "Red", 4)
	alice := f.join(t, "alice", room)
	loner := f.join(t, "loner", nil)
	f.startGame(t)

	_, err := f.app.BlockRoom(ctx, loner.Token)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	seconds, err := f.app.BlockRoom(ctx, alice.Token)
	require.NoError(t, err)
	assert.Equal(t, 180, seconds)

	f.clock.Advance(30 * time.Second)
	status, err := f.app.GetRoomStatus(ctx, alice.Token)
	require.NoError(t, err)
	assert.True(t, status.IsBlocked)
	assert.Equal(t, 150, status.BlockedSecondsRemaining)

	err = f.app.MarkEnigmaSolved(ctx, alice.Token, 1)
	assert.ErrorIs(t, err, models.ErrInvalidState, "blocked rooms cannot solve")

	t.Run("latest block wins", func(t *testing.T) {
		_, err := f.app.BlockRoom(ctx, alice.Token)
		require.NoError(t, err)
		status, err := f.app.GetRoomStatus(ctx, alice.Token)
		require.NoError(t, err)
		assert.Equal(t, 180, status.BlockedSecondsRemaining)
	})

	t.Run("unblock", func(t *testing.T) {
		require.NoError(t, f.app.UnblockRoom(ctx, f.master, room.ID))
		status, err := f.app.GetRoomStatus(ctx, alice.Token)
		require.NoError(t, err)
		assert.False(t, status.IsBlocked)
		require.NoError(t, f.app.MarkEnigmaSolved(ctx, alice.Token, 1))
	})

	t.Run("lockout lapses on its own", func(t *testing.T) {
		_, err := f.app.BlockRoom(ctx, alice.Token)
		require.NoError(t, err)
		f.clock.Advance(180 * time.Second)

		list, err := f.app.GetRooms(ctx, f.master)
		require.NoError(t, err)
		assert.False(t, list[0].IsBlocked)
		assert.Equal(t, 0, list[0].BlockedSecondsRemaining)
	})
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room := f.createRoom(t, "Red", 4)
	alice := f.join(t, "alice", room)

	require.NoError(t, f.app.DeleteRoom(ctx, f.master, room.ID))

	err := f.app.DeleteRoom(ctx, f.master, room.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	status, err := f.app.GetRoomStatus(ctx, alice.Token)
	require.NoError(t, err)
	assert.Nil(t, status.RoomID)

	list, err := f.app.GetRooms(ctx, f.master)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSolveAfterSessionEnds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.join(t, "alice", nil)
	f.startGame(t)

	require.NoError(t, f.sessions.Logout(ctx, f.master))
	err := f.app.MarkEnigmaSolved(ctx, alice.Token, 1)
	assert.ErrorIs(t, err, models.ErrSessionInactive)
}
