// Package escaperoom_client is a Go client for the escape-room RPC API.
package escaperoom_client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
	"github.com/mcdev12/escaperoom/go/internal/rpc"
)

const DefaultTimeout = 10 * time.Second

// Client calls every procedure of the session, player and room services.
// Errors come back as the models sentinels, or models.ErrNetwork when the
// server could not be reached.
type Client struct {
	baseURL    string
	httpClient *http.Client

	login        *connect.Client[escaperoomv1.LoginRequest, escaperoomv1.LoginResponse]
	heartbeat    *connect.Client[escaperoomv1.HeartbeatRequest, escaperoomv1.TimeResponse]
	getRemaining *connect.Client[escaperoomv1.SessionRequest, escaperoomv1.TimeResponse]
	startGame    *connect.Client[escaperoomv1.StartGameRequest, escaperoomv1.GameResponse]
	stopGame     *connect.Client[escaperoomv1.SessionRequest, escaperoomv1.SuccessResponse]
	pauseGame    *connect.Client[escaperoomv1.SessionRequest, escaperoomv1.GameResponse]
	resumeGame   *connect.Client[escaperoomv1.SessionRequest, escaperoomv1.GameResponse]
	resetGame    *connect.Client[escaperoomv1.SessionRequest, escaperoomv1.SuccessResponse]
	logout       *connect.Client[escaperoomv1.SessionRequest, escaperoomv1.SuccessResponse]

	checkSession     *connect.Client[escaperoomv1.CheckSessionRequest, escaperoomv1.CheckSessionResponse]
	join             *connect.Client[escaperoomv1.JoinRequest, escaperoomv1.JoinResponse]
	playerHeartbeat  *connect.Client[escaperoomv1.PlayerRequest, escaperoomv1.PlayerHeartbeatResponse]
	leave            *connect.Client[escaperoomv1.PlayerRequest, escaperoomv1.SuccessResponse]
	updateProgress   *connect.Client[escaperoomv1.UpdateProgressRequest, escaperoomv1.SuccessResponse]
	getPlayers       *connect.Client[escaperoomv1.GetPlayersRequest, escaperoomv1.GetPlayersResponse]
	markEnigmaSolved *connect.Client[escaperoomv1.MarkEnigmaSolvedRequest, escaperoomv1.SuccessResponse]
	markFinalSolved  *connect.Client[escaperoomv1.PlayerRequest, escaperoomv1.SuccessResponse]
	blockRoom        *connect.Client[escaperoomv1.PlayerRequest, escaperoomv1.BlockRoomResponse]
	getRoomStatus    *connect.Client[escaperoomv1.PlayerRequest, escaperoomv1.RoomStatusResponse]

	getRooms    *connect.Client[escaperoomv1.GetRoomsRequest, escaperoomv1.GetRoomsResponse]
	createRoom  *connect.Client[escaperoomv1.CreateRoomRequest, escaperoomv1.CreateRoomResponse]
	deleteRoom  *connect.Client[escaperoomv1.RoomRequest, escaperoomv1.SuccessResponse]
	assignRoom  *connect.Client[escaperoomv1.AssignRoomRequest, escaperoomv1.SuccessResponse]
	unblockRoom *connect.Client[escaperoomv1.RoomRequest, escaperoomv1.SuccessResponse]
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client, e.g. with an httptest one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.login = newUnary[escaperoomv1.LoginRequest, escaperoomv1.LoginResponse](c, escaperoomv1.SessionServiceLoginProcedure)
	c.heartbeat = newUnary[escaperoomv1.HeartbeatRequest, escaperoomv1.TimeResponse](c, escaperoomv1.SessionServiceHeartbeatProcedure)
	c.getRemaining = newUnary[escaperoomv1.SessionRequest, escaperoomv1.TimeResponse](c, escaperoomv1.SessionServiceGetRemainingProcedure)
	c.startGame = newUnary[escaperoomv1.StartGameRequest, escaperoomv1.GameResponse](c, escaperoomv1.SessionServiceStartGameProcedure)
	c.stopGame = newUnary[escaperoomv1.SessionRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.SessionServiceStopGameProcedure)
	c.pauseGame = newUnary[escaperoomv1.SessionRequest, escaperoomv1.GameResponse](c, escaperoomv1.SessionServicePauseGameProcedure)
	c.resumeGame = newUnary[escaperoomv1.SessionRequest, escaperoomv1.GameResponse](c, escaperoomv1.SessionServiceResumeGameProcedure)
	c.resetGame = newUnary[escaperoomv1.SessionRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.SessionServiceResetGameProcedure)
	c.logout = newUnary[escaperoomv1.SessionRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.SessionServiceLogoutProcedure)

	c.checkSession = newUnary[escaperoomv1.CheckSessionRequest, escaperoomv1.CheckSessionResponse](c, escaperoomv1.PlayerServiceCheckSessionProcedure)
	c.join = newUnary[escaperoomv1.JoinRequest, escaperoomv1.JoinResponse](c, escaperoomv1.PlayerServiceJoinProcedure)
	c.playerHeartbeat = newUnary[escaperoomv1.PlayerRequest, escaperoomv1.PlayerHeartbeatResponse](c, escaperoomv1.PlayerServiceHeartbeatProcedure)
	c.leave = newUnary[escaperoomv1.PlayerRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.PlayerServiceLeaveProcedure)
	c.updateProgress = newUnary[escaperoomv1.UpdateProgressRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.PlayerServiceUpdateProgressProcedure)
	c.getPlayers = newUnary[escaperoomv1.GetPlayersRequest, escaperoomv1.GetPlayersResponse](c, escaperoomv1.PlayerServiceGetPlayersProcedure)
	c.markEnigmaSolved = newUnary[escaperoomv1.MarkEnigmaSolvedRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.PlayerServiceMarkEnigmaSolvedProcedure)
	c.markFinalSolved = newUnary[escaperoomv1.PlayerRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.PlayerServiceMarkFinalSolvedProcedure)
	c.blockRoom = newUnary[escaperoomv1.PlayerRequest, escaperoomv1.BlockRoomResponse](c, escaperoomv1.PlayerServiceBlockRoomProcedure)
	c.getRoomStatus = newUnary[escaperoomv1.PlayerRequest, escaperoomv1.RoomStatusResponse](c, escaperoomv1.PlayerServiceGetRoomStatusProcedure)

	c.getRooms = newUnary[escaperoomv1.GetRoomsRequest, escaperoomv1.GetRoomsResponse](c, escaperoomv1.RoomServiceGetRoomsProcedure)
	c.createRoom = newUnary[escaperoomv1.CreateRoomRequest, escaperoomv1.CreateRoomResponse](c, escaperoomv1.RoomServiceCreateRoomProcedure)
	c.deleteRoom = newUnary[escaperoomv1.RoomRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.RoomServiceDeleteRoomProcedure)
	c.assignRoom = newUnary[escaperoomv1.AssignRoomRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.RoomServiceAssignRoomProcedure)
	c.unblockRoom = newUnary[escaperoomv1.RoomRequest, escaperoomv1.SuccessResponse](c, escaperoomv1.RoomServiceUnblockRoomProcedure)

	return c
}

func newUnary[Req, Res any](c *Client, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, connect.WithCodec(rpc.Codec{}))
}

// call runs one unary RPC and maps its error back to the domain sentinels.
func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, rpc.FromConnectError(err)
	}
	return res.Msg, nil
}
