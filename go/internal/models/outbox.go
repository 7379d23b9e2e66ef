package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a domain event waiting to be relayed to subscribers.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}
