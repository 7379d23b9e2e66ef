package outbox

import (
	"context"

	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// Broadcaster fans an envelope out to the connections of one session.
type Broadcaster interface {
	Broadcast(sessionID string, envelope events.Envelope)
}

// HubPublisher hands events straight to the in-process websocket hub. It is
// used when no NATS server is configured.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	p.hub.Broadcast(event.SessionID.String(), NewEnvelope(event))
	return nil
}
