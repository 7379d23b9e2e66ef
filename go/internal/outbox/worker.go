package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   200 * time.Millisecond,
	}
}

// Worker polls the outbox and publishes whatever is unsent. It works on any
// store, which makes it the relay for the in-memory mode.
type Worker struct {
	source    EventSource
	publisher Publisher
	config    Config
	clock     clockwork.Clock

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	processed uint64
	lastEvent time.Time
}

func NewWorker(source EventSource, publisher Publisher, cfg Config, clock clockwork.Clock) *Worker {
	return &Worker{
		source:    source,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

// Running reports whether the poll loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns the number of published events and when the last one went out.
func (w *Worker) Stats() (uint64, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed, w.lastEvent
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.ProcessOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.Chan():
			w.ProcessOutbox(ctx)
		}
	}
}

// ProcessOutbox publishes one batch and marks the successes as sent.
func (w *Worker) ProcessOutbox(ctx context.Context) int {
	events, err := w.source.FetchUnsentEvents(ctx, w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch unsent events")
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	var successfulIDs []uuid.UUID
	for _, event := range events {
		if err := publishWithRetry(ctx, w.clock, w.publisher, event, w.config.MaxRetries, w.config.RetryDelay); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			continue
		}
		successfulIDs = append(successfulIDs, event.ID)
	}

	if err := w.source.MarkEventsSent(ctx, successfulIDs...); err != nil {
		log.Error().Err(err).Msg("failed to mark events as sent")
		return 0
	}

	w.mu.Lock()
	w.processed += uint64(len(successfulIDs))
	if len(successfulIDs) > 0 {
		w.lastEvent = w.clock.Now()
	}
	w.mu.Unlock()

	log.Debug().
		Int("total", len(events)).
		Int("successful", len(successfulIDs)).
		Msg("processed outbox events")
	return len(successfulIDs)
}

// publishWithRetry backs off linearly between attempts.
func publishWithRetry(ctx context.Context, clock clockwork.Clock, publisher Publisher, event models.OutboxEvent, maxRetries int, retryDelay time.Duration) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(retryDelay * time.Duration(attempt)):
			}
		}

		if err := publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}
