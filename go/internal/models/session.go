package models

import (
	"time"

	"github.com/google/uuid"
)

// GameTimer holds the stored anchors of a round. EndsAt is non-nil only while
// the round is running; RemainingSeconds is the frozen value while paused.
type GameTimer struct {
	StartedAt        *time.Time `json:"game_started_at,omitempty"`
	EndsAt           *time.Time `json:"game_ends_at,omitempty"`
	RemainingSeconds int        `json:"game_remaining_seconds"`
	LastActivityAt   *time.Time `json:"game_last_activity_at,omitempty"`
}

// Running reports whether the round has a running anchor.
func (g GameTimer) Running() bool {
	return g.EndsAt != nil
}

// Paused reports whether the round is stopped with time left on it.
func (g GameTimer) Paused() bool {
	return g.EndsAt == nil && g.RemainingSeconds > 0
}

// Session represents a facilitator's time-boxed control window.
type Session struct {
	ID             uuid.UUID `json:"id"`
	Token          string    `json:"-"`
	StartedAt      time.Time `json:"started_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsActive       bool      `json:"is_active"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Game           GameTimer `json:"game"`
	CreatedAt      time.Time `json:"created_at"`
}

// Deadline is the earliest moment something changes for a session without a
// client asking: its window closes or its round runs out.
type Deadline struct {
	SessionID uuid.UUID `json:"session_id"`
	At        time.Time `json:"at"`
}
