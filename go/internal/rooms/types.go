package rooms

import (
	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// CreateRoomRequest represents the request to create a room
type CreateRoomRequest struct {
	Name       string
	MaxPlayers int
}

// RoomView is a room with its lockout recomputed at read time
type RoomView struct {
	models.Room
	IsBlocked               bool
	BlockedSecondsRemaining int
}

// RoomStatus is what a player sees of its room
type RoomStatus struct {
	RoomID                  *uuid.UUID
	SolvedEnigmas           []int
	IsBlocked               bool
	BlockedSecondsRemaining int
	AllEnigmasSolved        bool
	FinalSolved             bool
}
