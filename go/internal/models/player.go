package models

import (
	"time"

	"github.com/google/uuid"
)

// Player represents one participant device.
type Player struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	RoomID         *uuid.UUID `json:"room_id,omitempty"`
	Token          string     `json:"-"`
	Nickname       string     `json:"nickname"`
	CurrentPhase   Phase      `json:"current_phase"`
	CurrentEnigma  int        `json:"current_enigma"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	IsConnected    bool       `json:"is_connected"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`

	// Read views filled by the store.
	SolvedEnigmas []int `json:"solved_enigmas"`
	FinalSolved   bool  `json:"final_solved"`
}

// Liveness is either connected or stale since a point in time.
type Liveness struct {
	StaleSince *time.Time
}

// Connected reports whether the player is considered present.
func (l Liveness) Connected() bool {
	return l.StaleSince == nil
}

// Liveness derives presence from the last heartbeat. A player who sent a
// leave notification is stale from their last activity.
func (p *Player) Liveness(now time.Time, staleAfter time.Duration) Liveness {
	if !p.IsConnected {
		at := p.LastActivityAt
		return Liveness{StaleSince: &at}
	}
	if now.Sub(p.LastActivityAt) > staleAfter {
		at := p.LastActivityAt.Add(staleAfter)
		return Liveness{StaleSince: &at}
	}
	return Liveness{}
}
