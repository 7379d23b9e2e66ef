package escaperoomv1

import "time"

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	SessionToken     string    `json:"sessionToken"`
	RemainingSeconds int       `json:"remainingSeconds"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type SessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

type HeartbeatRequest struct {
	SessionToken string `json:"sessionToken"`
	IsGameActive bool   `json:"isGameActive"`
}

// TimeResponse answers heartbeat and get-remaining.
type TimeResponse struct {
	RemainingSeconds     int       `json:"remainingSeconds"`
	GameRemainingSeconds int       `json:"gameRemainingSeconds"`
	Expired              bool      `json:"expired"`
	GameActive           bool      `json:"gameActive"`
	GamePaused           bool      `json:"gamePaused"`
	ServerTime           time.Time `json:"serverTime"`
}

type StartGameRequest struct {
	SessionToken        string `json:"sessionToken"`
	GameDurationMinutes int    `json:"gameDurationMinutes"`
}

type GameResponse struct {
	Success              bool `json:"success"`
	GameRemainingSeconds int  `json:"gameRemainingSeconds"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
