package players

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/rpc"
)

// PlayersApp defines what the service layer needs from the players application
type PlayersApp interface {
	Join(ctx context.Context, nickname string) (*JoinResult, error)
	Heartbeat(ctx context.Context, playerToken string) (*HeartbeatResult, error)
	Leave(ctx context.Context, playerToken string) error
	UpdateProgress(ctx context.Context, playerToken string, phase string, enigma int) error
	GetPlayers(ctx context.Context, sessionToken string, roomID *uuid.UUID) ([]PlayerView, error)
}

// SessionChecker answers the unauthenticated session probe
type SessionChecker interface {
	CheckSession(ctx context.Context) (bool, error)
}

// Service implements the player procedures of PlayerService
type Service struct {
	app      PlayersApp
	sessions SessionChecker
}

// NewService creates a new players RPC service
func NewService(app PlayersApp, sessions SessionChecker) *Service {
	return &Service{
		app:      app,
		sessions: sessions,
	}
}

// Register mounts the player procedures on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceCheckSessionProcedure, s.CheckSession))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceJoinProcedure, s.Join))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceHeartbeatProcedure, s.Heartbeat))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceLeaveProcedure, s.Leave))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceUpdateProgressProcedure, s.UpdateProgress))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceGetPlayersProcedure, s.GetPlayers))
}

func (s *Service) CheckSession(ctx context.Context, _ *escaperoomv1.CheckSessionRequest) (*escaperoomv1.CheckSessionResponse, error) {
	active, err := s.sessions.CheckSession(ctx)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.CheckSessionResponse{SessionActive: active}, nil
}

func (s *Service) Join(ctx context.Context, req *escaperoomv1.JoinRequest) (*escaperoomv1.JoinResponse, error) {
	res, err := s.app.Join(ctx, req.Nickname)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.JoinResponse{
		Success:     true,
		PlayerToken: res.Player.Token,
		PlayerID:    res.Player.ID.String(),
		GameActive:  res.GameActive,
	}, nil
}

func (s *Service) Heartbeat(ctx context.Context, req *escaperoomv1.PlayerRequest) (*escaperoomv1.PlayerHeartbeatResponse, error) {
	res, err := s.app.Heartbeat(ctx, req.PlayerToken)
	if err != nil {
		return nil, err
	}
	out := &escaperoomv1.PlayerHeartbeatResponse{
		Success:              true,
		GameActive:           res.GameActive,
		GamePaused:           res.GamePaused,
		GameRemainingSeconds: res.GameRemainingSeconds,
		ConnectedPlayers:     res.ConnectedPlayers,
		Expired:              res.Expired,
	}
	if res.Player != nil && res.Player.RoomID != nil {
		out.RoomID = res.Player.RoomID.String()
	}
	return out, nil
}

func (s *Service) Leave(ctx context.Context, req *escaperoomv1.PlayerRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.Leave(ctx, req.PlayerToken); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) UpdateProgress(ctx context.Context, req *escaperoomv1.UpdateProgressRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.UpdateProgress(ctx, req.PlayerToken, req.CurrentPhase, req.CurrentEnigma); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) GetPlayers(ctx context.Context, req *escaperoomv1.GetPlayersRequest) (*escaperoomv1.GetPlayersResponse, error) {
	var roomID *uuid.UUID
	if req.RoomID != "" {
		id, err := uuid.Parse(req.RoomID)
		if err != nil {
			return nil, fmt.Errorf("roomId %q: %w", req.RoomID, models.ErrInvalidArgument)
		}
		roomID = &id
	}

	views, err := s.app.GetPlayers(ctx, req.SessionToken, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]escaperoomv1.Player, len(views))
	for i, v := range views {
		out[i] = playerToProto(v)
	}
	return &escaperoomv1.GetPlayersResponse{Players: out}, nil
}

func playerToProto(v PlayerView) escaperoomv1.Player {
	solved := v.SolvedEnigmas
	if solved == nil {
		solved = []int{}
	}
	p := escaperoomv1.Player{
		ID:             v.ID.String(),
		Nickname:       v.Nickname,
		CurrentPhase:   string(v.CurrentPhase),
		CurrentEnigma:  v.CurrentEnigma,
		SolvedEnigmas:  solved,
		FinalSolved:    v.FinalSolved,
		Score:          v.Score,
		CompletedAt:    v.CompletedAt,
		IsConnected:    v.Liveness.Connected(),
		StaleSince:     v.Liveness.StaleSince,
		LastActivityAt: v.LastActivityAt,
		CreatedAt:      v.CreatedAt,
	}
	if v.RoomID != nil {
		p.RoomID = v.RoomID.String()
	}
	return p
}
