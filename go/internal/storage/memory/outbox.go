package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

func (s *Store) InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := event
	s.outbox = append(s.outbox, &cp)
	return nil
}

// FetchUnsentOutbox returns the oldest unsent events.
func (s *Store) FetchUnsentOutbox(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []models.OutboxEvent
	for _, event := range s.outbox {
		if event.SentAt != nil {
			continue
		}
		events = append(events, *event)
		if limit > 0 && len(events) == int(limit) {
			break
		}
	}
	return events, nil
}

func (s *Store) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.outbox {
		if event.ID == id && event.SentAt == nil {
			cp := *event
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("outbox event %s: %w", id, models.ErrNotFound)
}

func (s *Store) MarkOutboxSent(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		sent[id] = struct{}{}
	}
	for _, event := range s.outbox {
		if _, ok := sent[event.ID]; ok && event.SentAt == nil {
			now := time.Now().UTC()
			event.SentAt = &now
		}
	}
	return nil
}

func (s *Store) CountUnsentOutbox(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, event := range s.outbox {
		if event.SentAt == nil {
			n++
		}
	}
	return n, nil
}
