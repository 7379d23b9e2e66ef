package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is a team of players sharing progress and penalty state.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	SessionID    uuid.UUID  `json:"session_id"`
	Code         string     `json:"room_code"`
	Name         string     `json:"room_name"`
	MaxPlayers   int        `json:"max_players"`
	IsActive     bool       `json:"is_active"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	// Read views filled by the store.
	PlayerCount   int   `json:"player_count"`
	SolvedEnigmas []int `json:"solved_enigmas"`
	FinalSolved   bool  `json:"final_solved"`
}

// SolveKind separates regular enigmas from the final stage in the solve log.
type SolveKind string

const (
	SolveKindEnigma SolveKind = "enigma"
	SolveKindFinal  SolveKind = "final"
)

// Solve is one row of the solve log, the only writable record of progress.
type Solve struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	PlayerID  uuid.UUID  `json:"player_id"`
	RoomID    *uuid.UUID `json:"room_id,omitempty"`
	Kind      SolveKind  `json:"kind"`
	Enigma    int        `json:"enigma"`
	SolvedAt  time.Time  `json:"solved_at"`
}
