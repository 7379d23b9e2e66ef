package session

import (
	"time"

	"github.com/mcdev12/escaperoom/go/internal/models"
)

// LoginResult is what a successful master login hands back
type LoginResult struct {
	Session          *models.Session
	RemainingSeconds int
	ExpiresAt        time.Time
}

// GameResult reports the round after a start, pause or resume
type GameResult struct {
	Game                 models.GameTimer
	GameRemainingSeconds int
}
