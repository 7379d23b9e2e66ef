package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	// Drains until the scheduler closes workCh so every queued job is marked done.
	for j := range o.workCh {
		if err := o.handleDue(ctx, j.session); err != nil {
			j.failed.Add(1)
			log.Error().
				Err(err).
				Str("session_id", j.session.ID.String()).
				Int("worker_id", workerID).
				Msg("failed to handle due session")
		}
		j.done.Done()
	}
}

// handleDue closes an out-of-window session or ends a round that hit zero.
// Both writes are conditional, so a heartbeat racing on the same session
// results in exactly one event.
func (o *Orchestrator) handleDue(ctx context.Context, s models.Session) error {
	now := o.clock.Now()

	if !now.Before(s.ExpiresAt) {
		flipped, err := o.repo.DeactivateSession(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to deactivate session: %w", err)
		}
		if flipped {
			o.emit(ctx, s, events.SessionExpired, events.SessionPayload{
				SessionID: s.ID.String(),
				ExpiresAt: s.ExpiresAt,
				At:        now,
			})
			log.Info().Str("session_id", s.ID.String()).Msg("session expired")
		}
		return nil
	}

	if s.Game.EndsAt != nil && !now.Before(*s.Game.EndsAt) {
		ended, err := o.repo.EndGameIfDue(ctx, s.ID, *s.Game.EndsAt)
		if err != nil {
			return fmt.Errorf("failed to end game: %w", err)
		}
		if ended {
			o.emit(ctx, s, events.GameEnded, events.GamePayload{
				SessionID: s.ID.String(),
				EndsAt:    s.Game.EndsAt,
				At:        now,
			})
			log.Info().Str("session_id", s.ID.String()).Msg("game ended")
		}
	}
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, s models.Session, eventType string, payload any) {
	if o.emitter == nil {
		return
	}
	if err := o.emitter.Emit(ctx, s.ID, eventType, payload); err != nil {
		log.Error().
			Err(err).
			Str("session_id", s.ID.String()).
			Str("event_type", eventType).
			Msg("failed to emit event")
	}
}
