package outbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// Publisher delivers one outbox event downstream.
type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
}

// EventSource is the slice of the outbox App the relays use
type EventSource interface {
	FetchUnsentEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error)
	MarkEventsSent(ctx context.Context, ids ...uuid.UUID) error
}

// NewEnvelope wraps an outbox event for the wire.
func NewEnvelope(event models.OutboxEvent) events.Envelope {
	return events.Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		SessionID: event.SessionID.String(),
		Timestamp: event.CreatedAt,
		Payload:   event.Payload,
	}
}
