package escaperoomv1

import "time"

type CheckSessionRequest struct{}

type CheckSessionResponse struct {
	SessionActive bool `json:"sessionActive"`
}

type JoinRequest struct {
	Nickname string `json:"nickname"`
}

type JoinResponse struct {
	Success     bool   `json:"success"`
	PlayerToken string `json:"playerToken"`
	PlayerID    string `json:"playerId"`
	GameActive  bool   `json:"gameActive"`
}

type PlayerRequest struct {
	PlayerToken string `json:"playerToken"`
}

type PlayerHeartbeatResponse struct {
	Success              bool   `json:"success"`
	GameActive           bool   `json:"gameActive"`
	GamePaused           bool   `json:"gamePaused"`
	GameRemainingSeconds int    `json:"gameRemainingSeconds"`
	ConnectedPlayers     int    `json:"connectedPlayers"`
	Expired              bool   `json:"expired"`
	RoomID               string `json:"roomId,omitempty"`
}

type UpdateProgressRequest struct {
	PlayerToken   string `json:"playerToken"`
	CurrentPhase  string `json:"currentPhase"`
	CurrentEnigma int    `json:"currentEnigma"`
}

type MarkEnigmaSolvedRequest struct {
	PlayerToken  string `json:"playerToken"`
	EnigmaNumber int    `json:"enigmaNumber"`
}

type BlockRoomResponse struct {
	Success        bool `json:"success"`
	BlockedSeconds int  `json:"blockedSeconds"`
}

type RoomStatusResponse struct {
	Success                 bool   `json:"success"`
	RoomID                  string `json:"roomId,omitempty"`
	SolvedEnigmas           []int  `json:"solvedEnigmas"`
	IsBlocked               bool   `json:"isBlocked"`
	BlockedSecondsRemaining int    `json:"blockedSecondsRemaining"`
	AllEnigmasSolved        bool   `json:"allEnigmasSolved"`
	FinalSolved             bool   `json:"finalSolved"`
}

type GetPlayersRequest struct {
	SessionToken string `json:"sessionToken,omitempty"`
	RoomID       string `json:"roomId,omitempty"`
}

type Player struct {
	ID             string     `json:"id"`
	Nickname       string     `json:"nickname"`
	RoomID         string     `json:"roomId,omitempty"`
	CurrentPhase   string     `json:"currentPhase"`
	CurrentEnigma  int        `json:"currentEnigma"`
	SolvedEnigmas  []int      `json:"solvedEnigmas"`
	FinalSolved    bool       `json:"finalSolved"`
	Score          int        `json:"score"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	IsConnected    bool       `json:"isConnected"`
	StaleSince     *time.Time `json:"staleSince,omitempty"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type GetPlayersResponse struct {
	Players []Player `json:"players"`
}
