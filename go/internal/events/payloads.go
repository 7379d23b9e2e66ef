package events

import (
	"encoding/json"
	"time"
)

// Event types written to the session outbox. They are push hints only:
// clients always follow up with a heartbeat or status read.
const (
	SessionStarted = "SessionStarted"
	SessionEnded   = "SessionEnded"
	SessionExpired = "SessionExpired"

	GameStarted = "GameStarted"
	GameStopped = "GameStopped"
	GamePaused  = "GamePaused"
	GameResumed = "GameResumed"
	GameEnded   = "GameEnded"
	GameReset   = "GameReset"

	RoomCreated   = "RoomCreated"
	RoomDeleted   = "RoomDeleted"
	RoomBlocked   = "RoomBlocked"
	RoomUnblocked = "RoomUnblocked"

	PlayerJoined   = "PlayerJoined"
	PlayerAssigned = "PlayerAssigned"
	EnigmaSolved   = "EnigmaSolved"
	FinalSolved    = "FinalSolved"
)

// SessionPayload is the payload for SessionStarted, SessionEnded and SessionExpired
type SessionPayload struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	At        time.Time `json:"at"`
}

// GamePayload is the payload for every Game* event
type GamePayload struct {
	SessionID        string     `json:"session_id"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
	At               time.Time  `json:"at"`
}

// RoomPayload is the payload for RoomCreated, RoomDeleted and RoomUnblocked
type RoomPayload struct {
	RoomID   string    `json:"room_id"`
	RoomCode string    `json:"room_code,omitempty"`
	RoomName string    `json:"room_name,omitempty"`
	At       time.Time `json:"at"`
}

// RoomBlockedPayload is the payload for a RoomBlocked event
type RoomBlockedPayload struct {
	RoomID         string    `json:"room_id"`
	PlayerID       string    `json:"player_id"`
	BlockedUntil   time.Time `json:"blocked_until"`
	BlockedSeconds int       `json:"blocked_seconds"`
}

// PlayerPayload is the payload for PlayerJoined and PlayerAssigned
type PlayerPayload struct {
	PlayerID string    `json:"player_id"`
	Nickname string    `json:"nickname,omitempty"`
	RoomID   *string   `json:"room_id,omitempty"`
	At       time.Time `json:"at"`
}

// SolvePayload is the payload for EnigmaSolved and FinalSolved
type SolvePayload struct {
	PlayerID string    `json:"player_id"`
	RoomID   *string   `json:"room_id,omitempty"`
	Enigma   int       `json:"enigma,omitempty"`
	SolvedAt time.Time `json:"solved_at"`
}

// Envelope wraps an outbox event on the wire, both on JetStream and on the
// websocket push channel.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
