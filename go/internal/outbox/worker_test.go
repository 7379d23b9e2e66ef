package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
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

type stubPublisher struct {
	mu        sync.Mutex
	published []models.OutboxEvent
	failTypes map[string]bool
	failOnce  bool
}

func (p *stubPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTypes[event.EventType] {
		return errors.New("broker rejected")
	}
	if p.failOnce {
		p.failOnce = false
		return errors.New("broker hiccup")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type stubBroadcaster struct {
	sessionID string
	envelope  events.Envelope
}

func (b *stubBroadcaster) Broadcast(sessionID string, envelope events.Envelope) {
	b.sessionID = sessionID
	b.envelope = envelope
}

func TestEmitValidatesPayload(t *testing.T) {
	ctx := context.Background()
	store := memory.New("")
	app := NewApp(store, clockwork.NewFakeClock())

	assert.Error(t, app.Emit(ctx, uuid.New(), events.GameStarted, nil))

	require.NoError(t, app.Emit(ctx, uuid.New(), events.GameStarted, events.GamePayload{RemainingSeconds: 60}))
	pending, err := app.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestProcessOutbox(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	app := NewApp(store, fc)
	sessionID := uuid.New()

	require.NoError(t, app.Emit(ctx, sessionID, events.GameStarted, events.GamePayload{}))
	require.NoError(t, app.Emit(ctx, sessionID, events.RoomBlocked, events.RoomBlockedPayload{BlockedSeconds: 180}))
	require.NoError(t, app.Emit(ctx, sessionID, events.GameEnded, events.GamePayload{}))

	publisher := &stubPublisher{failTypes: map[string]bool{events.RoomBlocked: true}}
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	w := NewWorker(app, publisher, cfg, fc)

	assert.Equal(t, 2, w.ProcessOutbox(ctx))
	assert.Equal(t, 2, publisher.count())

	pending, err := app.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "the failed event stays for the next pass")

	processed, last := w.Stats()
	assert.Equal(t, uint64(2), processed)
	assert.Equal(t, fc.Now(), last)

	publisher.mu.Lock()
	publisher.failTypes = nil
	publisher.mu.Unlock()
	assert.Equal(t, 1, w.ProcessOutbox(ctx))
	assert.Equal(t, 0, w.ProcessOutbox(ctx))
}

func TestPublishWithRetry(t *testing.T) {
	fc := clockwork.NewFakeClock()
	publisher := &stubPublisher{failOnce: true}
	event := models.OutboxEvent{ID: uuid.New(), EventType: events.GameStarted}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- publishWithRetry(ctx, fc, publisher, event, 3, 200*time.Millisecond)
	}()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(200 * time.Millisecond)

	require.NoError(t, <-errCh)
	assert.Equal(t, 1, publisher.count())
}

func TestPublishWithRetryGivesUp(t *testing.T) {
	publisher := &stubPublisher{failTypes: map[string]bool{events.GameStarted: true}}
	event := models.OutboxEvent{ID: uuid.New(), EventType: events.GameStarted}

	err := publishWithRetry(context.Background(), clockwork.NewFakeClock(), publisher, event, 0, time.Second)
	assert.ErrorContains(t, err, "failed after 1 attempts")
}

func TestWorkerStartStop(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	app := NewApp(store, fc)
	publisher := &stubPublisher{}
	w := NewWorker(app, publisher, DefaultConfig(), fc)

	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx))
	assert.True(t, w.Running())

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	require.NoError(t, app.Emit(ctx, uuid.New(), events.PlayerJoined, events.PlayerPayload{Nickname: "alice"}))
	fc.Advance(DefaultConfig().PollInterval)

	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.Running())
	assert.Error(t, w.Stop())
}

func TestHubPublisher(t *testing.T) {
	hub := &stubBroadcaster{}
	sessionID := uuid.New()
	event := models.OutboxEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: events.RoomUnblocked,
		Payload:   json.RawMessage(`{"room_id":"r1"}`),
	}

	require.NoError(t, NewHubPublisher(hub).Publish(context.Background(), event))
	assert.Equal(t, sessionID.String(), hub.sessionID)
	assert.Equal(t, event.ID.String(), hub.envelope.EventID)
	assert.Equal(t, events.RoomUnblocked, hub.envelope.EventType)
	assert.JSONEq(t, `{"room_id":"r1"}`, string(hub.envelope.Payload))
}

type stubRelay struct {
	running   bool
	processed uint64
	last      time.Time
}

func (r stubRelay) Running() bool              { return r.running }
func (r stubRelay) Stats() (uint64, time.Time) { return r.processed, r.last }

func TestHealthChecker(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	app := NewApp(store, fc)

	t.Run("healthy when idle", func(t *testing.T) {
		h := NewHealthChecker(stubRelay{running: true}, store, app, nil, fc, time.Minute)
		status := h.Check(ctx)
		assert.True(t, status.Healthy)
		assert.True(t, status.DatabaseConnected)
		assert.True(t, status.RelayActive)
	})

	t.Run("stopped relay", func(t *testing.T) {
		h := NewHealthChecker(stubRelay{}, store, app, nil, fc, time.Minute)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
		assert.Contains(t, status.Errors, "relay not active")
	})

	t.Run("stale relay with a backlog", func(t *testing.T) {
		require.NoError(t, app.Emit(ctx, uuid.New(), events.GameStarted, events.GamePayload{}))
		relay := stubRelay{running: true, processed: 5, last: fc.Now()}
		fc.Advance(2 * time.Minute)

		status := NewHealthChecker(relay, store, app, nil, fc, time.Minute).Check(ctx)
		assert.False(t, status.Healthy)
		assert.Equal(t, 1, status.PendingEvents)
	})
}
