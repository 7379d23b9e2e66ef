package players_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/outbox"
	"github.com/mcdev12/escaperoom/go/internal/players"
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
	app      *players.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	rules := models.DefaultRules()
	fc := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))
	store := memory.New(string(hash))
	authority := clock.NewAuthority(fc)
	emitter := outbox.NewApp(store, fc)
	sessions := session.NewApp(store, authority, emitter, rules)

	return &fixture{
		clock:    fc,
		store:    store,
		sessions: sessions,
		app:      players.NewApp(store, sessions, authority, emitter, rules),
	}
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	res, err := f.sessions.Login(context.Background(), password)
	require.NoError(t, err)
	return res.Session.Token
}

func TestJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.app.Join(ctx, "alice")
		assert.ErrorIs(t, err, models.ErrSessionInactive)
	})

	t.Run("nickname validation", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		for _, nick := range []string{"", "   ", strings.Repeat("x", players.MaxNicknameLength+1)} {
			_, err := f.app.Join(ctx, nick)
			assert.ErrorIs(t, err, models.ErrNicknameInvalid, "nickname %q", nick)
		}
	})

	t.Run("duplicate nicknames get distinct identities", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)

		a, err := f.app.Join(ctx, "  alice ")
		require.NoError(t, err)
		b, err := f.app.Join(ctx, "alice")
		require.NoError(t, err)

		assert.Equal(t, "alice", a.Player.Nickname)
		assert.NotEqual(t, a.Player.ID, b.Player.ID)
		assert.NotEqual(t, a.Player.Token, b.Player.Token)
		assert.False(t, a.GameActive)
	})

	t.Run("reports a running round", func(t *testing.T) {
		f := newFixture(t)
		token := f.login(t)
		_, err := f.sessions.StartGame(ctx, token, 30)
		require.NoError(t, err)

		res, err := f.app.Join(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, res.GameActive)
	})
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	master := f.login(t)

	alice, err := f.app.Join(ctx, "alice")
	require.NoError(t, err)
	_, err = f.app.Join(ctx, "bob")
	require.NoError(t, err)

	_, err = f.app.Heartbeat(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrAuth)

	res, err := f.app.Heartbeat(ctx, alice.Player.Token)
	require.NoError(t, err)
	assert.False(t, res.GameActive)
	assert.Equal(t, 2, res.ConnectedPlayers)

	_, err = f.sessions.StartGame(ctx, master, 20)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Second)
	res, err = f.app.Heartbeat(ctx, alice.Player.Token)
	require.NoError(t, err)
	assert.True(t, res.GameActive)
	assert.Equal(t, 20*60-11, res.GameRemainingSeconds)
	assert.Equal(t, 1, res.ConnectedPlayers, "bob went stale")

	_, err = f.sessions.PauseGame(ctx, master)
	require.NoError(t, err)
	res, err = f.app.Heartbeat(ctx, alice.Player.Token)
	require.NoError(t, err)
	assert.False(t, res.GameActive)
	assert.True(t, res.GamePaused)

	require.NoError(t, f.sessions.Logout(ctx, master))
	res, err = f.app.Heartbeat(ctx, alice.Player.Token)
	require.NoError(t, err)
	assert.True(t, res.Expired)
	assert.False(t, res.GameActive)
}

func TestLeaveAndReconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	master := f.login(t)

	alice, err := f.app.Join(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, f.app.Leave(ctx, alice.Player.Token))

	list, err := f.app.GetPlayers(ctx, master, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsConnected)
	require.NotNil(t, list[0].Liveness.StaleSince)

	f.clock.Advance(time.Second)
	_, err = f.app.Heartbeat(ctx, alice.Player.Token)
	require.NoError(t, err)

	list, err = f.app.GetPlayers(ctx, master, nil)
	require.NoError(t, err)
	assert.True(t, list[0].IsConnected)
	assert.True(t, list[0].Liveness.Connected())
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	master := f.login(t)

	alice, err := f.app.Join(ctx, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, f.app.UpdateProgress(ctx, alice.Player.Token, "dancing", 1), models.ErrInvalidArgument)
	assert.ErrorIs(t, f.app.UpdateProgress(ctx, alice.Player.Token, "enigma", 11), models.ErrInvalidArgument)
	assert.ErrorIs(t, f.app.UpdateProgress(ctx, "missing", "enigma", 1), models.ErrAuth)

	require.NoError(t, f.app.UpdateProgress(ctx, alice.Player.Token, "enigma", 3))

	list, err := f.app.GetPlayers(ctx, master, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnigma, list[0].CurrentPhase)
	assert.Equal(t, 3, list[0].CurrentEnigma)
	assert.Equal(t, 0, list[0].Score, "progress pointers never score")
}

func TestGetPlayers(t *testing.T) {
	ctx := context.Background()

	t.Run("empty without a session", func(t *testing.T) {
		f := newFixture(t)
		list, err := f.app.GetPlayers(ctx, "", nil)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("bad master token", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		_, err := f.app.GetPlayers(ctx, "missing", nil)
		assert.ErrorIs(t, err, models.ErrAuth)
	})

	t.Run("stale after the threshold", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		_, err := f.app.Join(ctx, "alice")
		require.NoError(t, err)

		f.clock.Advance(10 * time.Second)
		list, err := f.app.GetPlayers(ctx, "", nil)
		require.NoError(t, err)
		assert.True(t, list[0].IsConnected)

		f.clock.Advance(time.Second)
		list, err = f.app.GetPlayers(ctx, "", nil)
		require.NoError(t, err)
		assert.False(t, list[0].IsConnected)
	})
}

func TestSortLeaderboard(t *testing.T) {
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := base.Add(d)
		return &v
	}
	view := func(nick string, score int, completed *time.Time, joined time.Duration) players.PlayerView {
		return players.PlayerView{
			Player: models.Player{Nickname: nick, CompletedAt: completed, CreatedAt: base.Add(joined)},
			Score:  score,
		}
	}

	views := []players.PlayerView{
		view("late-joiner", 300, nil, 3*time.Second),
		view("slow-finisher", 1500, at(20*time.Minute), 0),
		view("fast-finisher", 1500, at(10*time.Minute), time.Second),
		view("early-joiner", 300, nil, time.Second),
		view("leader", 1000, nil, 0),
	}
	players.SortLeaderboard(views)

	var order []string
	for _, v := range views {
		order = append(order, v.Nickname)
	}
	assert.Equal(t, []string{"fast-finisher", "slow-finisher", "leader", "early-joiner", "late-joiner"}, order)
}
