package players

import (
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// JoinResult is what a new player gets back
type JoinResult struct {
	Player     *models.Player
	GameActive bool
}

// HeartbeatResult is the authoritative answer to a player heartbeat
type HeartbeatResult struct {
	GameActive           bool
	GamePaused           bool
	GameRemainingSeconds int
	ConnectedPlayers     int
	Expired              bool
	Player               *models.Player
}

// PlayerView is a leaderboard row
type PlayerView struct {
	models.Player
	Score    int
	Liveness models.Liveness
}
