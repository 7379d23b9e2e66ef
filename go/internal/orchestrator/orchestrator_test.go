package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) Emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
	return nil
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func seedSession(t *testing.T, store *memory.Store, now time.Time, window time.Duration, game time.Duration) *models.Session {
	t.Helper()
	s := &models.Session{
		ID:        uuid.New(),
		Token:     uuid.NewString(),
		StartedAt: now,
		ExpiresAt: now.Add(window),
		IsActive:  true,
		CreatedAt: now,
	}
	if game > 0 {
		ends := now.Add(game)
		s.Game = models.GameTimer{StartedAt: &now, EndsAt: &ends, RemainingSeconds: int(game / time.Second)}
	}
	_, err := store.CreateSession(context.Background(), s, false)
	require.NoError(t, err)
	return s
}

func TestHandleDueExpiresSession(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	emitter := &recordingEmitter{}
	o := NewOrchestrator(store, emitter, fc, DefaultConfig())

	s := seedSession(t, store, fc.Now(), time.Minute, 0)
	fc.Advance(time.Minute)

	require.NoError(t, o.handleDue(ctx, *s))
	require.NoError(t, o.handleDue(ctx, *s), "a second pass finds nothing to flip")

	stored, err := store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, []string{events.SessionExpired}, emitter.types())
}

func TestHandleDueEndsRound(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	emitter := &recordingEmitter{}
	o := NewOrchestrator(store, emitter, fc, DefaultConfig())

	s := seedSession(t, store, fc.Now(), time.Hour, 10*time.Minute)
	fc.Advance(10 * time.Minute)

	require.NoError(t, o.handleDue(ctx, *s))
	require.NoError(t, o.handleDue(ctx, *s))

	stored, err := store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.Game.Running())
	assert.Equal(t, []string{events.GameEnded}, emitter.types())
}

func TestHandleDueSkipsReplacedRound(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	emitter := &recordingEmitter{}
	o := NewOrchestrator(store, emitter, fc, DefaultConfig())

	s := seedSession(t, store, fc.Now(), time.Hour, 10*time.Minute)
	fc.Advance(10 * time.Minute)

	// the master restarted the round after the scheduler read the old one
	now := fc.Now()
	ends := now.Add(30 * time.Minute)
	require.NoError(t, store.UpdateGameTimer(ctx, s.ID, models.GameTimer{StartedAt: &now, EndsAt: &ends, RemainingSeconds: 1800}))

	require.NoError(t, o.handleDue(ctx, *s))
	stored, err := store.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.Game.Running())
	assert.Empty(t, emitter.types())
}

func TestRunSchedulerSleepsUntilDeadline(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	emitter := &recordingEmitter{}
	o := NewOrchestrator(store, emitter, fc, DefaultConfig())

	short := seedSession(t, store, fc.Now(), 5*time.Minute, 0)
	long := seedSession(t, store, fc.Now(), time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.RunScheduler(ctx)
	}()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	assert.Empty(t, emitter.types(), "nothing is due yet")

	fc.Advance(5 * time.Minute)
	require.Eventually(t, func() bool {
		s, err := store.GetSessionByID(context.Background(), short.ID)
		return err == nil && !s.IsActive
	}, time.Second, 5*time.Millisecond)

	s, err := store.GetSessionByID(context.Background(), long.ID)
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Equal(t, []string{events.SessionExpired}, emitter.types())

	cancel()
	<-done
}

func TestWakeRereadsDeadline(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	emitter := &recordingEmitter{}
	o := NewOrchestrator(store, emitter, fc, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.RunScheduler(ctx)
	}()

	// idling with no sessions
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	s := seedSession(t, store, fc.Now(), time.Hour, time.Minute)
	o.Wake()

	// the idle sleep is replaced by one until the round ends
	require.Eventually(t, func() bool {
		fc.Advance(time.Minute)
		stored, err := store.GetSessionByID(context.Background(), s.ID)
		return err == nil && !stored.Game.Running()
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, emitter.types(), events.GameEnded)

	cancel()
	<-done
}

func TestBackoff(t *testing.T) {
	o := NewOrchestrator(memory.New(""), nil, clockwork.NewFakeClock(), Config{RetryDelay: time.Second, MaxRetryWait: 5 * time.Second})
	assert.Equal(t, time.Second, o.backoff(1))
	assert.Equal(t, 3*time.Second, o.backoff(3))
	assert.Equal(t, 5*time.Second, o.backoff(10))
}
