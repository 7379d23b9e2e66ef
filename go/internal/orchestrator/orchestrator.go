package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DeadlineRepository is what the scheduler needs from the session store
type DeadlineRepository interface {
	FetchNextDeadline(ctx context.Context) (*models.Deadline, error)
	FetchSessionsDue(ctx context.Context, now time.Time, limit int32) ([]models.Session, error)
	DeactivateSession(ctx context.Context, id uuid.UUID) (bool, error)
	EndGameIfDue(ctx context.Context, id uuid.UUID, endsAt time.Time) (bool, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error
}

type Config struct {
	Workers      int
	BatchSize    int32         // how many due sessions to claim at once
	IdlePoll     time.Duration // sleep when nothing is scheduled
	RetryDelay   time.Duration // base backoff after a store error
	MaxRetryWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:      4,
		BatchSize:    50,
		IdlePoll:     30 * time.Second,
		RetryDelay:   time.Second,
		MaxRetryWait: 30 * time.Second,
	}
}

// Orchestrator persists what the clock has already decided: it closes
// sessions whose window ran out and stops rounds that reached zero, then
// emits the matching events. Reads never depend on it having run.
type Orchestrator struct {
	repo       DeadlineRepository
	emitter    EventEmitter
	clock      clockwork.Clock
	config     Config
	wakeCh     chan struct{}
	instanceID string

	workCh chan job
}

type job struct {
	session models.Session
	done    *sync.WaitGroup
	failed  *atomic.Int32
}

func NewOrchestrator(repo DeadlineRepository, emitter EventEmitter, clock clockwork.Clock, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		repo:       repo,
		emitter:    emitter,
		clock:      clock,
		config:     cfg,
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8],
		workCh:     make(chan job, cfg.Workers*2),
	}
}

// Wake makes the scheduler re-read the next deadline, e.g. after a login or
// a round start moved it earlier. It never blocks.
func (o *Orchestrator) Wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

// RunScheduler loops until ctx is done, sleeping until the next deadline and
// handing due sessions to the worker pool.
func (o *Orchestrator) RunScheduler(ctx context.Context) error {
	log.Info().Str("instance", o.instanceID).Int("workers", o.config.Workers).Msg("scheduler started")

	var wg sync.WaitGroup
	for i := 0; i < o.config.Workers; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, i)
	}
	defer func() {
		close(o.workCh)
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	}()

	retries := 0
	for {
		// A wake that arrived before this read is already covered by it.
		select {
		case <-o.wakeCh:
		default:
		}

		next, err := o.repo.FetchNextDeadline(ctx)
		if err != nil {
			retries++
			log.Error().Err(err).Int("retry", retries).Str("instance", o.instanceID).Msg("error fetching next deadline")
			if !o.sleep(ctx, o.backoff(retries)) {
				return nil
			}
			continue
		}

		if next == nil {
			retries = 0
			log.Debug().Str("instance", o.instanceID).Msg("no active sessions; idling")
			if !o.sleep(ctx, o.config.IdlePoll) {
				return nil
			}
			continue
		}

		if wait := next.At.Sub(o.clock.Now()); wait > 0 {
			log.Debug().
				Str("session_id", next.SessionID.String()).
				Time("deadline", next.At).
				Dur("wait", wait).
				Msg("sleeping until next deadline")
			if !o.sleep(ctx, wait) {
				return nil
			}
			// Woken early or on time, the deadline is re-read either way.
			if o.clock.Now().Before(next.At) {
				continue
			}
		}

		handled, failed, err := o.processDue(ctx)
		switch {
		case err != nil:
			retries++
			log.Error().Err(err).Int("retry", retries).Str("instance", o.instanceID).Msg("error processing due sessions")
		case failed > 0, handled == 0:
			// handled == 0 means the deadline query and the due query disagree
			retries++
		default:
			retries = 0
		}
		if retries > 0 && !o.sleep(ctx, o.backoff(retries)) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// processDue fans one batch of due sessions out to the workers and waits for
// all of them. It returns the batch size and how many could not be handled.
func (o *Orchestrator) processDue(ctx context.Context) (int, int, error) {
	due, err := o.repo.FetchSessionsDue(ctx, o.clock.Now(), o.config.BatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(due) == 0 {
		return 0, 0, nil
	}

	log.Info().
		Int("count_due", len(due)).
		Str("instance", o.instanceID).
		Msg("processing due sessions")

	var (
		done   sync.WaitGroup
		failed atomic.Int32
	)
	for _, s := range due {
		done.Add(1)
		select {
		case o.workCh <- job{session: s, done: &done, failed: &failed}:
		case <-ctx.Done():
			done.Done()
			done.Wait()
			return len(due), int(failed.Load()), nil
		}
	}
	done.Wait()
	return len(due), int(failed.Load()), nil
}

// sleep waits for d, a wake, or ctx. It returns false only when ctx is done.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	timer := o.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-o.wakeCh:
		log.Debug().Str("instance", o.instanceID).Msg("woken up early")
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) backoff(retries int) time.Duration {
	d := o.config.RetryDelay * time.Duration(retries)
	if d > o.config.MaxRetryWait {
		return o.config.MaxRetryWait
	}
	return d
}
