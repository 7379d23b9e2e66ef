package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// OutboxRepository defines what the app layer needs from the repository
type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) error
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]models.OutboxEvent, error)
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, ids ...uuid.UUID) error
	CountUnsentOutbox(ctx context.Context) (int, error)
}

// App handles outbox business logic
type App struct {
	repo  OutboxRepository
	clock clockwork.Clock
}

// NewApp creates a new outbox App
func NewApp(repo OutboxRepository, clock clockwork.Clock) *App {
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// Emit stores an event for the relay. Payload is marshalled to JSON.
func (a *App) Emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	if err := a.validateEventPayload(data); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	event := models.OutboxEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: a.clock.Now().UTC(),
	}
	if err := a.repo.InsertOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("event_type", eventType).
		Str("event_id", event.ID.String()).
		Msg("outbox event inserted")

	return nil
}

// FetchUnsentEvents fetches unsent outbox events
func (a *App) FetchUnsentEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	events, err := a.repo.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}

	if len(events) > 0 {
		log.Debug().
			Int("count", len(events)).
			Msg("fetched unsent outbox events")
	}

	return events, nil
}

// MarkEventsSent marks outbox events as sent
func (a *App) MarkEventsSent(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := a.repo.MarkOutboxSent(ctx, ids...); err != nil {
		return fmt.Errorf("failed to mark events as sent: %w", err)
	}
	return nil
}

// GetEventByID fetches a specific unsent outbox event by ID
func (a *App) GetEventByID(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	event, err := a.repo.FetchOutboxByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event by ID: %w", err)
	}

	return event, nil
}

// CountPending reports how many events are waiting for the relay.
func (a *App) CountPending(ctx context.Context) (int, error) {
	n, err := a.repo.CountUnsentOutbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}

func (a *App) validateEventPayload(payload []byte) error {
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("event payload cannot be empty")
	}
	return nil
}
