package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	mu            sync.Mutex
	sessionActive bool
	gameActive    bool
	obs           Observation
	heartbeatErr  error
	joins         int
	heartbeats    int
	lastToken     string
}

func (e *fakeEndpoint) CheckSession(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionActive, nil
}

func (e *fakeEndpoint) Join(ctx context.Context, nickname string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joins++
	return "token-" + nickname, e.gameActive, nil
}

func (e *fakeEndpoint) Heartbeat(ctx context.Context, token string) (Observation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heartbeats++
	e.lastToken = token
	return e.obs, e.heartbeatErr
}

func (e *fakeEndpoint) set(fn func(e *fakeEndpoint)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

func (e *fakeEndpoint) heartbeatCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heartbeats
}

func newTestRunner(endpoint Endpoint, tokens TokenStore) (*Runner, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	return NewRunner(endpoint, tokens, fc, DefaultRunnerConfig()), fc
}

func TestRunnerJoinFlow(t *testing.T) {
	ctx := context.Background()
	endpoint := &fakeEndpoint{sessionActive: true}
	tokens := NewMemoryTokenStore()
	r, _ := newTestRunner(endpoint, tokens)

	var transitions []Transition
	r.OnTransition(func(tr Transition) { transitions = append(transitions, tr) })

	require.NoError(t, r.Probe(ctx))
	assert.Equal(t, StateLogin, r.State())

	require.NoError(t, r.Join(ctx, "alice"))
	assert.Equal(t, StateWaitingGame, r.State())
	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-alice", token)

	endpoint.set(func(e *fakeEndpoint) {
		e.obs = Observation{GameActive: true, GameRemainingSeconds: 1800}
	})
	require.NoError(t, r.Beat(ctx))
	assert.Equal(t, StatePlaying, r.State())
	assert.Equal(t, 1800, r.Remaining())
	assert.Equal(t, "token-alice", endpoint.lastToken)

	require.Len(t, transitions, 3)
	assert.Equal(t, StateLogin, transitions[0].To)
	assert.Equal(t, StateWaitingGame, transitions[1].To)
	assert.Equal(t, StatePlaying, transitions[2].To)
}

func TestRunnerResumesStoredToken(t *testing.T) {
	ctx := context.Background()
	endpoint := &fakeEndpoint{
		sessionActive: true,
		obs:           Observation{GameActive: true, GameRemainingSeconds: 900},
	}
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("stored"))
	r, _ := newTestRunner(endpoint, tokens)

	require.NoError(t, r.Probe(ctx))
	assert.Equal(t, StatePlaying, r.State(), "a stored token skips the join")
	assert.Equal(t, 0, endpoint.joins)
	assert.Equal(t, "stored", endpoint.lastToken)
}

func TestRunnerDiscardsExpiredToken(t *testing.T) {
	ctx := context.Background()
	endpoint := &fakeEndpoint{sessionActive: true, obs: Observation{Expired: true}}
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("old-session"))
	r, _ := newTestRunner(endpoint, tokens)

	require.NoError(t, r.Probe(ctx))
	assert.Equal(t, StateLogin, r.State())
	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRunnerToleratesNetworkErrors(t *testing.T) {
	ctx := context.Background()
	endpoint := &fakeEndpoint{sessionActive: true, gameActive: true, obs: Observation{GameActive: true, GameRemainingSeconds: 60}}
	tokens := NewMemoryTokenStore()
	r, _ := newTestRunner(endpoint, tokens)

	require.NoError(t, r.Probe(ctx))
	require.NoError(t, r.Join(ctx, "bob"))
	require.NoError(t, r.Beat(ctx))

	netErr := errors.Join(models.ErrNetwork, errors.New("timeout"))
	endpoint.set(func(e *fakeEndpoint) { e.heartbeatErr = netErr })

	assert.ErrorIs(t, r.Beat(ctx), models.ErrNetwork)
	assert.Equal(t, StatePlaying, r.State())
	assert.ErrorIs(t, r.Beat(ctx), models.ErrNetwork)
	assert.Equal(t, StateDisconnected, r.State())

	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-bob", token, "the token survives a disconnect")

	endpoint.set(func(e *fakeEndpoint) { e.heartbeatErr = nil })
	require.NoError(t, r.Beat(ctx))
	assert.Equal(t, StatePlaying, r.State())
}

func TestRunnerNudge(t *testing.T) {
	endpoint := &fakeEndpoint{sessionActive: true, obs: Observation{GameActive: true, GameRemainingSeconds: 60}}
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("stored"))
	r, _ := newTestRunner(endpoint, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return r.State() == StatePlaying }, time.Second, 5*time.Millisecond)
	before := endpoint.heartbeatCount()

	r.Nudge()
	require.Eventually(t, func() bool { return endpoint.heartbeatCount() > before }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRunnerHeartbeatTicker(t *testing.T) {
	endpoint := &fakeEndpoint{sessionActive: true, obs: Observation{GameActive: true, GameRemainingSeconds: 600}}
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("stored"))
	r, fc := newTestRunner(endpoint, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// heartbeat and display tickers
	require.NoError(t, fc.BlockUntilContext(ctx, 2))
	before := endpoint.heartbeatCount()

	endpoint.set(func(e *fakeEndpoint) { e.obs = Observation{} })
	fc.Advance(DefaultRunnerConfig().HeartbeatInterval)

	require.Eventually(t, func() bool { return r.State() == StateGameEnded }, time.Second, 5*time.Millisecond)
	assert.Greater(t, endpoint.heartbeatCount(), before)
}

func newMasterRunner(endpoint Endpoint, tokens TokenStore) (*Runner, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	return NewRunner(endpoint, tokens, fc, MasterRunnerConfig(models.DefaultRules())), fc
}

func TestRunnerConfigFollowsRules(t *testing.T) {
	rules := models.DefaultRules()
	rules.PlayerHeartbeatInterval = 3 * time.Second
	rules.MasterHeartbeatInterval = 7 * time.Second

	player := PlayerRunnerConfig(rules)
	assert.Equal(t, 3*time.Second, player.HeartbeatInterval)
	assert.Equal(t, DefaultTolerance, player.Tolerance)
	assert.False(t, player.Master)

	master := MasterRunnerConfig(rules)
	assert.Equal(t, 7*time.Second, master.HeartbeatInterval)
	assert.Zero(t, master.Tolerance)
	assert.True(t, master.Master)

	assert.Equal(t, models.DefaultRules().PlayerHeartbeatInterval, DefaultRunnerConfig().HeartbeatInterval)
}

func TestRunnerGameEndedShowsServerZero(t *testing.T) {
	ctx := context.Background()
	endpoint := &fakeEndpoint{sessionActive: true, gameActive: true, obs: Observation{GameActive: true, GameRemainingSeconds: 3}}
	r, _ := newTestRunner(endpoint, NewMemoryTokenStore())

	require.NoError(t, r.Probe(ctx))
	require.NoError(t, r.Join(ctx, "carol"))
	require.NoError(t, r.Beat(ctx))
	assert.Equal(t, 3, r.Remaining())

	endpoint.set(func(e *fakeEndpoint) { e.obs = Observation{} })
	require.NoError(t, r.Beat(ctx))
	assert.Equal(t, StateGameEnded, r.State())
	assert.Zero(t, r.Remaining(), "a difference within tolerance still yields to a stopped clock")
}

func TestRunnerMasterWithoutSessionGoesToLogin(t *testing.T) {
	ctx := context.Background()
	endpoint := &fakeEndpoint{}
	r, _ := newMasterRunner(endpoint, NewMemoryTokenStore())

	require.NoError(t, r.Probe(ctx))
	assert.Equal(t, StateLogin, r.State(), "a master opens the session, so no-session does not apply")

	player, _ := newTestRunner(endpoint, NewMemoryTokenStore())
	require.NoError(t, player.Probe(ctx))
	assert.Equal(t, StateNoSession, player.State())
}

func TestRunnerMasterLocalZeroNotConfirmed(t *testing.T) {
	endpoint := &fakeEndpoint{sessionActive: true, obs: Observation{RemainingSeconds: 2}}
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("master"))
	r, fc := newMasterRunner(endpoint, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 2))
	assert.Equal(t, StateWaitingGame, r.State())
	assert.Equal(t, 2, r.SessionRemaining())
	before := endpoint.heartbeatCount()

	// the server clock is behind ours
	endpoint.set(func(e *fakeEndpoint) { e.obs = Observation{RemainingSeconds: 4} })

	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return r.SessionRemaining() == 1 }, time.Second, 5*time.Millisecond)
	fc.Advance(time.Second)

	require.Eventually(t, func() bool { return r.SessionRemaining() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, before+1, endpoint.heartbeatCount(), "local zero sends one confirming heartbeat")
	assert.Equal(t, StateWaitingGame, r.State())
}

func TestRunnerMasterLocalZeroConfirmed(t *testing.T) {
	endpoint := &fakeEndpoint{sessionActive: true, obs: Observation{RemainingSeconds: 1}}
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("master"))
	r, fc := newMasterRunner(endpoint, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 2))
	require.Equal(t, StateWaitingGame, r.State())

	endpoint.set(func(e *fakeEndpoint) {
		e.sessionActive = false
		e.obs = Observation{Expired: true}
	})
	fc.Advance(time.Second)

	require.Eventually(t, func() bool { return r.State() == StateExpired }, time.Second, 5*time.Millisecond)
	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	fc.Advance(MasterRunnerConfig(models.DefaultRules()).HeartbeatInterval)
	require.Eventually(t, func() bool { return r.State() == StateLogin }, time.Second, 5*time.Millisecond)
}
