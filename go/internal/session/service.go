package session

import (
	"context"
	"net/http"

	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/rpc"
)

// SessionApp defines what the service layer needs from the session application
type SessionApp interface {
	Login(ctx context.Context, password string) (*LoginResult, error)
	Heartbeat(ctx context.Context, token string, isGameActive bool) (clock.Snapshot, error)
	GetRemaining(ctx context.Context, token string) (clock.Snapshot, error)
	StartGame(ctx context.Context, token string, durationMinutes int) (*GameResult, error)
	StopGame(ctx context.Context, token string) error
	PauseGame(ctx context.Context, token string) (*GameResult, error)
	ResumeGame(ctx context.Context, token string) (*GameResult, error)
	ResetGame(ctx context.Context, token string) error
	Logout(ctx context.Context, token string) error
}

// Service implements the SessionService RPC surface
type Service struct {
	app SessionApp
}

// NewService creates a new session RPC service
func NewService(app SessionApp) *Service {
	return &Service{
		app: app,
	}
}

// Register mounts every SessionService procedure on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceLoginProcedure, s.Login))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceHeartbeatProcedure, s.Heartbeat))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceGetRemainingProcedure, s.GetRemaining))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceStartGameProcedure, s.StartGame))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceStopGameProcedure, s.StopGame))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServicePauseGameProcedure, s.PauseGame))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceResumeGameProcedure, s.ResumeGame))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceResetGameProcedure, s.ResetGame))
	mux.Handle(rpc.Unary(escaperoomv1.SessionServiceLogoutProcedure, s.Logout))
}

func (s *Service) Login(ctx context.Context, req *escaperoomv1.LoginRequest) (*escaperoomv1.LoginResponse, error) {
	res, err := s.app.Login(ctx, req.Password)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.LoginResponse{
		SessionToken:     res.Session.Token,
		RemainingSeconds: res.RemainingSeconds,
		ExpiresAt:        res.ExpiresAt,
	}, nil
}

func (s *Service) Heartbeat(ctx context.Context, req *escaperoomv1.HeartbeatRequest) (*escaperoomv1.TimeResponse, error) {
	snap, err := s.app.Heartbeat(ctx, req.SessionToken, req.IsGameActive)
	if err != nil {
		return nil, err
	}
	return snapshotToProto(snap), nil
}

func (s *Service) GetRemaining(ctx context.Context, req *escaperoomv1.SessionRequest) (*escaperoomv1.TimeResponse, error) {
	snap, err := s.app.GetRemaining(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}
	return snapshotToProto(snap), nil
}

func (s *Service) StartGame(ctx context.Context, req *escaperoomv1.StartGameRequest) (*escaperoomv1.GameResponse, error) {
	res, err := s.app.StartGame(ctx, req.SessionToken, req.GameDurationMinutes)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.GameResponse{Success: true, GameRemainingSeconds: res.GameRemainingSeconds}, nil
}

func (s *Service) StopGame(ctx context.Context, req *escaperoomv1.SessionRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.StopGame(ctx, req.SessionToken); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) PauseGame(ctx context.Context, req *escaperoomv1.SessionRequest) (*escaperoomv1.GameResponse, error) {
	res, err := s.app.PauseGame(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.GameResponse{Success: true, GameRemainingSeconds: res.GameRemainingSeconds}, nil
}

func (s *Service) ResumeGame(ctx context.Context, req *escaperoomv1.SessionRequest) (*escaperoomv1.GameResponse, error) {
	res, err := s.app.ResumeGame(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.GameResponse{Success: true, GameRemainingSeconds: res.GameRemainingSeconds}, nil
}

func (s *Service) ResetGame(ctx context.Context, req *escaperoomv1.SessionRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.ResetGame(ctx, req.SessionToken); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) Logout(ctx context.Context, req *escaperoomv1.SessionRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.Logout(ctx, req.SessionToken); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func snapshotToProto(snap clock.Snapshot) *escaperoomv1.TimeResponse {
	return &escaperoomv1.TimeResponse{
		RemainingSeconds:     snap.RemainingSeconds,
		GameRemainingSeconds: snap.GameRemainingSeconds,
		Expired:              snap.Expired,
		GameActive:           snap.GameActive,
		GamePaused:           snap.GamePaused,
		ServerTime:           snap.ServerTime,
	}
}
