// Package escaperoomv1 holds the wire messages and procedure names of the
// escape-room RPC API. Messages are plain structs carried by a JSON codec.
package escaperoomv1

const (
	SessionServiceName = "escaperoom.v1.SessionService"
	PlayerServiceName  = "escaperoom.v1.PlayerService"
	RoomServiceName    = "escaperoom.v1.RoomService"
)

const (
	SessionServiceLoginProcedure        = "/escaperoom.v1.SessionService/Login"
	SessionServiceHeartbeatProcedure    = "/escaperoom.v1.SessionService/Heartbeat"
	SessionServiceGetRemainingProcedure = "/escaperoom.v1.SessionService/GetRemaining"
	SessionServiceStartGameProcedure    = "/escaperoom.v1.SessionService/StartGame"
	SessionServiceStopGameProcedure     = "/escaperoom.v1.SessionService/StopGame"
	SessionServicePauseGameProcedure    = "/escaperoom.v1.SessionService/PauseGame"
	SessionServiceResumeGameProcedure   = "/escaperoom.v1.SessionService/ResumeGame"
	SessionServiceResetGameProcedure    = "/escaperoom.v1.SessionService/ResetGame"
	SessionServiceLogoutProcedure       = "/escaperoom.v1.SessionService/Logout"
)

const (
	PlayerServiceCheckSessionProcedure     = "/escaperoom.v1.PlayerService/CheckSession"
	PlayerServiceJoinProcedure             = "/escaperoom.v1.PlayerService/Join"
	PlayerServiceHeartbeatProcedure        = "/escaperoom.v1.PlayerService/Heartbeat"
	PlayerServiceLeaveProcedure            = "/escaperoom.v1.PlayerService/Leave"
	PlayerServiceUpdateProgressProcedure   = "/escaperoom.v1.PlayerService/UpdateProgress"
	PlayerServiceGetPlayersProcedure       = "/escaperoom.v1.PlayerService/GetPlayers"
	PlayerServiceMarkEnigmaSolvedProcedure = "/escaperoom.v1.PlayerService/MarkEnigmaSolved"
	PlayerServiceMarkFinalSolvedProcedure  = "/escaperoom.v1.PlayerService/MarkFinalSolved"
	PlayerServiceBlockRoomProcedure        = "/escaperoom.v1.PlayerService/BlockRoom"
	PlayerServiceGetRoomStatusProcedure    = "/escaperoom.v1.PlayerService/GetRoomStatus"
)

const (
	RoomServiceGetRoomsProcedure    = "/escaperoom.v1.RoomService/GetRooms"
	RoomServiceCreateRoomProcedure  = "/escaperoom.v1.RoomService/CreateRoom"
	RoomServiceDeleteRoomProcedure  = "/escaperoom.v1.RoomService/DeleteRoom"
	RoomServiceAssignRoomProcedure  = "/escaperoom.v1.RoomService/AssignRoom"
	RoomServiceUnblockRoomProcedure = "/escaperoom.v1.RoomService/UnblockRoom"
)
