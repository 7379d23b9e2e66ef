package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/escaperoom/go/internal/models"
)

// NotifyChannel is the channel the session_outbox trigger notifies on.
const NotifyChannel = "session_outbox_events"

type ListenerConfig struct {
	DatabaseURL      string
	NotifyChannel    string
	FallbackInterval time.Duration // sweep for rows whose notification was lost
	PingInterval     time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	BatchSize        int32
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    NotifyChannel,
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		BatchSize:        100,
	}
}

// Notifier is the LISTEN side of Postgres. A nil notification means the
// connection was re-established and notifications may have been missed.
type Notifier interface {
	Notifications() <-chan *pq.Notification
	Ping() error
	Close() error
}

type pqNotifier struct {
	l *pq.Listener
}

func (n pqNotifier) Notifications() <-chan *pq.Notification { return n.l.Notify }
func (n pqNotifier) Ping() error                            { return n.l.Ping() }
func (n pqNotifier) Close() error                           { return n.l.Close() }

// DialNotifier opens a pq.Listener subscribed to cfg.NotifyChannel.
func DialNotifier(cfg ListenerConfig) (Notifier, error) {
	l := pq.NewListener(cfg.DatabaseURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			log.Warn().Err(err).Msg("outbox listener disconnected")
		case pq.ListenerEventReconnected:
			log.Info().Msg("outbox listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Error().Err(err).Msg("outbox listener reconnect failed")
		}
	})
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.NotifyChannel, err)
	}
	return pqNotifier{l: l}, nil
}

// Listener relays outbox rows as soon as Postgres announces them. It
// satisfies RelayStats so the relay process can report health from it.
type Listener struct {
	source    EventSource
	notifier  Notifier
	publisher Publisher
	cfg       ListenerConfig
	clock     clockwork.Clock

	running atomic.Bool

	mu        sync.Mutex
	processed uint64
	lastEvent time.Time
}

func NewListener(source EventSource, notifier Notifier, publisher Publisher, cfg ListenerConfig, clock clockwork.Clock) *Listener {
	return &Listener{
		source:    source,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
	}
}

// Start blocks until ctx is cancelled, then closes the notifier.
func (l *Listener) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("listener already running")
	}
	defer l.running.Store(false)

	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("outbox listener started")

	ping := l.clock.NewTicker(l.cfg.PingInterval)
	sweep := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer ping.Stop()
	defer sweep.Stop()

	// rows written while no relay was running
	l.sweep(ctx)

	notifications := l.notifier.Notifications()
	for {
		select {
		case <-ctx.Done():
			return l.notifier.Close()
		case note, ok := <-notifications:
			if !ok {
				return errors.New("notification channel closed")
			}
			if note == nil {
				l.sweep(ctx)
				continue
			}
			if err := l.relay(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("failed to relay notified event")
			}
		case <-sweep.Chan():
			l.sweep(ctx)
		case <-ping.Chan():
			if err := l.notifier.Ping(); err != nil {
				log.Error().Err(err).Msg("outbox listener ping failed")
			}
		}
	}
}

func (l *Listener) Running() bool {
	return l.running.Load()
}

func (l *Listener) Stats() (uint64, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed, l.lastEvent
}

// relay publishes the event named by a notification. A sweep may already
// have sent it, in which case nothing happens.
func (l *Listener) relay(ctx context.Context, payload string) error {
	id, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}

	event, err := l.source.GetEventByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}

	if err := publishWithRetry(ctx, l.clock, l.publisher, *event, l.cfg.MaxRetries, l.cfg.RetryDelay); err != nil {
		return err
	}
	if err := l.source.MarkEventsSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark outbox event %s as sent: %w", id, err)
	}
	l.record(1)

	log.Debug().Str("event_id", id.String()).Str("event_type", event.EventType).Msg("relayed notified event")
	return nil
}

func (l *Listener) sweep(ctx context.Context) {
	unsent, err := l.source.FetchUnsentEvents(ctx, l.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent outbox events")
		return
	}

	sent := make([]uuid.UUID, 0, len(unsent))
	for _, event := range unsent {
		if err := publishWithRetry(ctx, l.clock, l.publisher, event, l.cfg.MaxRetries, l.cfg.RetryDelay); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish swept event")
			continue
		}
		sent = append(sent, event.ID)
	}
	if len(sent) == 0 {
		return
	}
	if err := l.source.MarkEventsSent(ctx, sent...); err != nil {
		log.Error().Err(err).Int("count", len(sent)).Msg("failed to mark swept events as sent")
		return
	}
	l.record(len(sent))
	log.Info().Int("count", len(sent)).Msg("swept unsent outbox events")
}

func (l *Listener) record(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed += uint64(n)
	l.lastEvent = l.clock.Now()
}
