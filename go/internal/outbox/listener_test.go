package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	ch     chan *pq.Notification
	closed chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan *pq.Notification, 4), closed: make(chan struct{})}
}

func (n *fakeNotifier) Notifications() <-chan *pq.Notification { return n.ch }
func (n *fakeNotifier) Ping() error                            { return nil }
func (n *fakeNotifier) Close() error {
	close(n.closed)
	return nil
}

func TestListenerRelaysNotifiedEvents(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	app := NewApp(store, fc)
	publisher := &stubPublisher{}
	notifier := newFakeNotifier()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// written before the relay came up
	require.NoError(t, app.Emit(ctx, uuid.New(), events.GameStarted, events.GamePayload{}))

	l := NewListener(app, notifier, publisher, DefaultListenerConfig(), fc)
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool {
		pending, err := app.CountPending(ctx)
		return err == nil && pending == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, publisher.count())
	assert.True(t, l.Running())

	require.NoError(t, app.Emit(ctx, uuid.New(), events.RoomBlocked, events.RoomBlockedPayload{BlockedSeconds: 180}))
	unsent, err := app.FetchUnsentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsent, 1)

	notifier.ch <- &pq.Notification{Channel: NotifyChannel, Extra: unsent[0].ID.String()}
	require.Eventually(t, func() bool { return publisher.count() == 2 }, time.Second, 5*time.Millisecond)

	// a repeated notification for a sent row is ignored
	notifier.ch <- &pq.Notification{Channel: NotifyChannel, Extra: unsent[0].ID.String()}
	notifier.ch <- &pq.Notification{Channel: NotifyChannel, Extra: "not-a-uuid"}

	cancel()
	require.NoError(t, <-done)
	<-notifier.closed

	assert.Equal(t, 2, publisher.count())
	processed, last := l.Stats()
	assert.Equal(t, uint64(2), processed)
	assert.Equal(t, fc.Now(), last)
	assert.False(t, l.Running())

	pending, err := app.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestListenerSweepsAfterReconnect(t *testing.T) {
	fc := clockwork.NewFakeClock()
	store := memory.New("")
	app := NewApp(store, fc)
	publisher := &stubPublisher{}
	notifier := newFakeNotifier()

	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(app, notifier, publisher, DefaultListenerConfig(), fc)
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, l.Running, time.Second, 5*time.Millisecond)

	// the notification for this row was lost while disconnected
	require.NoError(t, app.Emit(ctx, uuid.New(), events.PlayerJoined, events.PlayerPayload{Nickname: "alice"}))
	notifier.ch <- nil

	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
