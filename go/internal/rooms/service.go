package rooms

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/api/escaperoomv1"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/rpc"
)

// RoomsApp defines what the service layer needs from the rooms application
type RoomsApp interface {
	CreateRoom(ctx context.Context, sessionToken string, req CreateRoomRequest) (*RoomView, error)
	DeleteRoom(ctx context.Context, sessionToken string, roomID uuid.UUID) error
	AssignPlayer(ctx context.Context, sessionToken string, playerID uuid.UUID, roomID *uuid.UUID) error
	UnblockRoom(ctx context.Context, sessionToken string, roomID uuid.UUID) error
	GetRooms(ctx context.Context, sessionToken string) ([]RoomView, error)
	MarkEnigmaSolved(ctx context.Context, playerToken string, enigma int) error
	MarkFinalSolved(ctx context.Context, playerToken string) error
	BlockRoom(ctx context.Context, playerToken string) (int, error)
	GetRoomStatus(ctx context.Context, playerToken string) (*RoomStatus, error)
}

// Service implements the RoomService procedures and the room procedures of
// PlayerService
type Service struct {
	app RoomsApp
}

// NewService creates a new rooms RPC service
func NewService(app RoomsApp) *Service {
	return &Service{
		app: app,
	}
}

// Register mounts the room procedures on mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle(rpc.Unary(escaperoomv1.RoomServiceGetRoomsProcedure, s.GetRooms))
	mux.Handle(rpc.Unary(escaperoomv1.RoomServiceCreateRoomProcedure, s.CreateRoom))
	mux.Handle(rpc.Unary(escaperoomv1.RoomServiceDeleteRoomProcedure, s.DeleteRoom))
	mux.Handle(rpc.Unary(escaperoomv1.RoomServiceAssignRoomProcedure, s.AssignRoom))
	mux.Handle(rpc.Unary(escaperoomv1.RoomServiceUnblockRoomProcedure, s.UnblockRoom))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceMarkEnigmaSolvedProcedure, s.MarkEnigmaSolved))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceMarkFinalSolvedProcedure, s.MarkFinalSolved))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceBlockRoomProcedure, s.BlockRoom))
	mux.Handle(rpc.Unary(escaperoomv1.PlayerServiceGetRoomStatusProcedure, s.GetRoomStatus))
}

func (s *Service) GetRooms(ctx context.Context, req *escaperoomv1.GetRoomsRequest) (*escaperoomv1.GetRoomsResponse, error) {
	rooms, err := s.app.GetRooms(ctx, req.SessionToken)
	if err != nil {
		return nil, err
	}
	out := make([]escaperoomv1.Room, len(rooms))
	for i, room := range rooms {
		out[i] = roomToProto(room)
	}
	return &escaperoomv1.GetRoomsResponse{Rooms: out}, nil
}

func (s *Service) CreateRoom(ctx context.Context, req *escaperoomv1.CreateRoomRequest) (*escaperoomv1.CreateRoomResponse, error) {
	room, err := s.app.CreateRoom(ctx, req.SessionToken, CreateRoomRequest{
		Name:       req.RoomName,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.CreateRoomResponse{Success: true, Room: roomToProto(*room)}, nil
}

func (s *Service) DeleteRoom(ctx context.Context, req *escaperoomv1.RoomRequest) (*escaperoomv1.SuccessResponse, error) {
	roomID, err := parseID("roomId", req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := s.app.DeleteRoom(ctx, req.SessionToken, roomID); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) AssignRoom(ctx context.Context, req *escaperoomv1.AssignRoomRequest) (*escaperoomv1.SuccessResponse, error) {
	playerID, err := parseID("playerId", req.PlayerID)
	if err != nil {
		return nil, err
	}
	var roomID *uuid.UUID
	if req.RoomID != nil && *req.RoomID != "" {
		id, err := parseID("roomId", *req.RoomID)
		if err != nil {
			return nil, err
		}
		roomID = &id
	}
	if err := s.app.AssignPlayer(ctx, req.SessionToken, playerID, roomID); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) UnblockRoom(ctx context.Context, req *escaperoomv1.RoomRequest) (*escaperoomv1.SuccessResponse, error) {
	roomID, err := parseID("roomId", req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := s.app.UnblockRoom(ctx, req.SessionToken, roomID); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) MarkEnigmaSolved(ctx context.Context, req *escaperoomv1.MarkEnigmaSolvedRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.MarkEnigmaSolved(ctx, req.PlayerToken, req.EnigmaNumber); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) MarkFinalSolved(ctx context.Context, req *escaperoomv1.PlayerRequest) (*escaperoomv1.SuccessResponse, error) {
	if err := s.app.MarkFinalSolved(ctx, req.PlayerToken); err != nil {
		return nil, err
	}
	return &escaperoomv1.SuccessResponse{Success: true}, nil
}

func (s *Service) BlockRoom(ctx context.Context, req *escaperoomv1.PlayerRequest) (*escaperoomv1.BlockRoomResponse, error) {
	seconds, err := s.app.BlockRoom(ctx, req.PlayerToken)
	if err != nil {
		return nil, err
	}
	return &escaperoomv1.BlockRoomResponse{Success: true, BlockedSeconds: seconds}, nil
}

func (s *Service) GetRoomStatus(ctx context.Context, req *escaperoomv1.PlayerRequest) (*escaperoomv1.RoomStatusResponse, error) {
	status, err := s.app.GetRoomStatus(ctx, req.PlayerToken)
	if err != nil {
		return nil, err
	}
	res := &escaperoomv1.RoomStatusResponse{
		Success:                 true,
		SolvedEnigmas:           status.SolvedEnigmas,
		IsBlocked:               status.IsBlocked,
		BlockedSecondsRemaining: status.BlockedSecondsRemaining,
		AllEnigmasSolved:        status.AllEnigmasSolved,
		FinalSolved:             status.FinalSolved,
	}
	if res.SolvedEnigmas == nil {
		res.SolvedEnigmas = []int{}
	}
	if status.RoomID != nil {
		res.RoomID = status.RoomID.String()
	}
	return res, nil
}

func roomToProto(room RoomView) escaperoomv1.Room {
	solved := room.SolvedEnigmas
	if solved == nil {
		solved = []int{}
	}
	return escaperoomv1.Room{
		ID:                      room.ID.String(),
		RoomCode:                room.Code,
		RoomName:                room.Name,
		MaxPlayers:              room.MaxPlayers,
		IsActive:                room.IsActive,
		PlayerCount:             room.PlayerCount,
		SolvedEnigmas:           solved,
		FinalSolved:             room.FinalSolved,
		IsBlocked:               room.IsBlocked,
		BlockedSecondsRemaining: room.BlockedSecondsRemaining,
		BlockedUntil:            room.BlockedUntil,
		CreatedAt:               room.CreatedAt,
	}
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", field, value, models.ErrInvalidArgument)
	}
	return id, nil
}
