package escaperoomv1

import "time"

type GetRoomsRequest struct {
	SessionToken string `json:"sessionToken,omitempty"`
}

type Room struct {
	ID                      string     `json:"id"`
	RoomCode                string     `json:"roomCode"`
	RoomName                string     `json:"roomName"`
	MaxPlayers              int        `json:"maxPlayers"`
	IsActive                bool       `json:"isActive"`
	PlayerCount             int        `json:"playerCount"`
	SolvedEnigmas           []int      `json:"solvedEnigmas"`
	FinalSolved             bool       `json:"finalSolved"`
	IsBlocked               bool       `json:"isBlocked"`
	BlockedSecondsRemaining int        `json:"blockedSecondsRemaining"`
	BlockedUntil            *time.Time `json:"blockedUntil,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
}

type GetRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type CreateRoomRequest struct {
	SessionToken string `json:"sessionToken"`
	RoomName     string `json:"roomName"`
	MaxPlayers   int    `json:"maxPlayers,omitempty"`
}

type CreateRoomResponse struct {
	Success bool `json:"success"`
	Room    Room `json:"room"`
}

type RoomRequest struct {
	SessionToken string `json:"sessionToken"`
	RoomID       string `json:"roomId"`
}

// AssignRoomRequest moves a player; a null or empty roomId unassigns.
type AssignRoomRequest struct {
	SessionToken string  `json:"sessionToken"`
	PlayerID     string  `json:"playerId"`
	RoomID       *string `json:"roomId"`
}
