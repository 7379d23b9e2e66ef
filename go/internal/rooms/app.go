package rooms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

const roomCodeLength = 6

// RoomsRepository defines what the app layer needs from the repository
type RoomsRepository interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, sessionID, roomID uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, sessionID uuid.UUID) ([]models.Room, error)
	DeleteRoom(ctx context.Context, sessionID, roomID uuid.UUID) error
	AssignPlayer(ctx context.Context, sessionID, playerID uuid.UUID, roomID *uuid.UUID) error
	SetRoomBlockedUntil(ctx context.Context, roomID uuid.UUID, until *time.Time) error
	InsertSolve(ctx context.Context, solve models.Solve) (bool, error)
	MarkPlayerCompleted(ctx context.Context, playerID uuid.UUID, at time.Time, total int) (bool, error)
}

// PlayerReader resolves player tokens with their solved views
type PlayerReader interface {
	GetPlayerByToken(ctx context.Context, token string) (*models.Player, error)
}

// SessionAuthorizer resolves master tokens and the session players belong to
type SessionAuthorizer interface {
	Authorize(ctx context.Context, token string) (*models.Session, error)
	CurrentSession(ctx context.Context) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// EventEmitter records domain events for the push pipeline
type EventEmitter interface {
	Emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error
}

// App handles rooms, lockouts and puzzle progress
type App struct {
	repo      RoomsRepository
	players   PlayerReader
	sessions  SessionAuthorizer
	authority *clock.Authority
	emitter   EventEmitter
	rules     models.Rules
}

// NewApp creates a new rooms App
func NewApp(repo RoomsRepository, players PlayerReader, sessions SessionAuthorizer, authority *clock.Authority, emitter EventEmitter, rules models.Rules) *App {
	return &App{
		repo:      repo,
		players:   players,
		sessions:  sessions,
		authority: authority,
		emitter:   emitter,
		rules:     rules,
	}
}

// CreateRoom adds a room to the master's session
func (a *App) CreateRoom(ctx context.Context, sessionToken string, req CreateRoomRequest) (*RoomView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("room name is required: %w", models.ErrInvalidArgument)
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = a.rules.DefaultMaxPlayers
	}
	if maxPlayers < 1 {
		return nil, fmt.Errorf("max players must be positive: %w", models.ErrInvalidArgument)
	}

	s, err := a.sessions.Authorize(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	code, err := newRoomCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate room code: %w", err)
	}
	room := &models.Room{
		ID:            uuid.New(),
		SessionID:     s.ID,
		Code:          code,
		Name:          name,
		MaxPlayers:    maxPlayers,
		IsActive:      true,
		CreatedAt:     a.authority.Now(),
		SolvedEnigmas: []int{},
	}
	if err := a.repo.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	a.emit(ctx, s.ID, events.RoomCreated, events.RoomPayload{
		RoomID:   room.ID.String(),
		RoomCode: room.Code,
		RoomName: room.Name,
		At:       room.CreatedAt,
	})
	log.Info().
		Str("session_id", s.ID.String()).
		Str("room_id", room.ID.String()).
		Str("room_code", room.Code).
		Msg("room created")

	view := a.view(*room)
	return &view, nil
}

// DeleteRoom removes a room. Its players stay in the session, unassigned.
func (a *App) DeleteRoom(ctx context.Context, sessionToken string, roomID uuid.UUID) error {
	s, err := a.sessions.Authorize(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := a.repo.DeleteRoom(ctx, s.ID, roomID); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	a.emit(ctx, s.ID, events.RoomDeleted, events.RoomPayload{RoomID: roomID.String(), At: a.authority.Now()})
	log.Info().Str("session_id", s.ID.String()).Str("room_id", roomID.String()).Msg("room deleted")
	return nil
}

// AssignPlayer moves a player into a room, or out of any room when roomID is nil
func (a *App) AssignPlayer(ctx context.Context, sessionToken string, playerID uuid.UUID, roomID *uuid.UUID) error {
	s, err := a.sessions.Authorize(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := a.repo.AssignPlayer(ctx, s.ID, playerID, roomID); err != nil {
		return fmt.Errorf("failed to assign player: %w", err)
	}

	payload := events.PlayerPayload{PlayerID: playerID.String(), At: a.authority.Now()}
	if roomID != nil {
		id := roomID.String()
		payload.RoomID = &id
	}
	a.emit(ctx, s.ID, events.PlayerAssigned, payload)
	log.Info().Str("player_id", playerID.String()).Interface("room_id", roomID).Msg("player assigned")
	return nil
}

// UnblockRoom lifts a lockout before it runs out
func (a *App) UnblockRoom(ctx context.Context, sessionToken string, roomID uuid.UUID) error {
	s, err := a.sessions.Authorize(ctx, sessionToken)
	if err != nil {
		return err
	}
	if _, err := a.repo.GetRoom(ctx, s.ID, roomID); err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	if err := a.repo.SetRoomBlockedUntil(ctx, roomID, nil); err != nil {
		return fmt.Errorf("failed to unblock room: %w", err)
	}

	a.emit(ctx, s.ID, events.RoomUnblocked, events.RoomPayload{RoomID: roomID.String(), At: a.authority.Now()})
	log.Info().Str("room_id", roomID.String()).Msg("room unblocked")
	return nil
}

// GetRooms lists the rooms of the master's session, or of the current session
// when no token is given. With no session the list is empty.
func (a *App) GetRooms(ctx context.Context, sessionToken string) ([]RoomView, error) {
	s, err := a.resolveSession(ctx, sessionToken)
	if sessionToken == "" && errors.Is(err, models.ErrSessionInactive) {
		return []RoomView{}, nil
	}
	if err != nil {
		return nil, err
	}

	rooms, err := a.repo.ListRooms(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	views := make([]RoomView, len(rooms))
	for i, room := range rooms {
		views[i] = a.view(room)
	}
	return views, nil
}

// MarkEnigmaSolved credits a puzzle to the player. Submitting a puzzle the
// player already solved succeeds without doing anything.
func (a *App) MarkEnigmaSolved(ctx context.Context, playerToken string, enigma int) error {
	if enigma < 1 || enigma > a.rules.TotalEnigmas {
		return fmt.Errorf("enigma must be between 1 and %d: %w", a.rules.TotalEnigmas, models.ErrInvalidArgument)
	}

	p, s, err := a.playerSession(ctx, playerToken)
	if err != nil {
		return err
	}
	if slices.Contains(p.SolvedEnigmas, enigma) {
		return nil
	}
	if err := a.checkCanSolve(ctx, p, s); err != nil {
		return err
	}

	now := a.authority.Now()
	inserted, err := a.repo.InsertSolve(ctx, models.Solve{
		ID:        uuid.New(),
		SessionID: s.ID,
		PlayerID:  p.ID,
		RoomID:    p.RoomID,
		Kind:      models.SolveKindEnigma,
		Enigma:    enigma,
		SolvedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to record solve: %w", err)
	}
	if !inserted {
		return nil
	}

	completed, err := a.repo.MarkPlayerCompleted(ctx, p.ID, now, a.rules.TotalEnigmas)
	if err != nil {
		return fmt.Errorf("failed to mark player completed: %w", err)
	}

	a.emit(ctx, s.ID, events.EnigmaSolved, events.SolvePayload{
		PlayerID: p.ID.String(),
		RoomID:   uuidString(p.RoomID),
		Enigma:   enigma,
		SolvedAt: now,
	})
	log.Info().
		Str("player_id", p.ID.String()).
		Int("enigma", enigma).
		Bool("completed", completed).
		Msg("enigma solved")
	return nil
}

// MarkFinalSolved records the final stage once every enigma is solved
func (a *App) MarkFinalSolved(ctx context.Context, playerToken string) error {
	p, s, err := a.playerSession(ctx, playerToken)
	if err != nil {
		return err
	}
	if p.FinalSolved {
		return nil
	}

	status, err := a.status(ctx, p)
	if err != nil {
		return err
	}
	if status.FinalSolved {
		return nil
	}
	if !status.AllEnigmasSolved {
		return fmt.Errorf("all enigmas must be solved first: %w", models.ErrInvalidState)
	}
	if err := a.checkCanSolve(ctx, p, s); err != nil {
		return err
	}

	now := a.authority.Now()
	inserted, err := a.repo.InsertSolve(ctx, models.Solve{
		ID:        uuid.New(),
		SessionID: s.ID,
		PlayerID:  p.ID,
		RoomID:    p.RoomID,
		Kind:      models.SolveKindFinal,
		SolvedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to record final solve: %w", err)
	}
	if inserted {
		a.emit(ctx, s.ID, events.FinalSolved, events.SolvePayload{
			PlayerID: p.ID.String(),
			RoomID:   uuidString(p.RoomID),
			SolvedAt: now,
		})
		log.Info().Str("player_id", p.ID.String()).Msg("final enigma solved")
	}
	return nil
}

// BlockRoom locks the player's room for the penalty duration. The latest call
// always sets the end, even if an earlier lockout ran longer.
func (a *App) BlockRoom(ctx context.Context, playerToken string) (int, error) {
	p, s, err := a.playerSession(ctx, playerToken)
	if err != nil {
		return 0, err
	}
	if p.RoomID == nil {
		return 0, fmt.Errorf("player has no room: %w", models.ErrInvalidState)
	}

	until := a.authority.BlockUntil(a.rules.BlockDuration)
	if err := a.repo.SetRoomBlockedUntil(ctx, *p.RoomID, &until); err != nil {
		return 0, fmt.Errorf("failed to block room: %w", err)
	}

	seconds := int(a.rules.BlockDuration / time.Second)
	a.emit(ctx, s.ID, events.RoomBlocked, events.RoomBlockedPayload{
		RoomID:         p.RoomID.String(),
		PlayerID:       p.ID.String(),
		BlockedUntil:   until,
		BlockedSeconds: seconds,
	})
	log.Info().
		Str("room_id", p.RoomID.String()).
		Str("player_id", p.ID.String()).
		Time("blocked_until", until).
		Msg("room blocked")
	return seconds, nil
}

// GetRoomStatus recomputes the player's room progress and lockout
func (a *App) GetRoomStatus(ctx context.Context, playerToken string) (*RoomStatus, error) {
	p, _, err := a.playerSession(ctx, playerToken)
	if err != nil {
		return nil, err
	}
	return a.status(ctx, p)
}

func (a *App) status(ctx context.Context, p *models.Player) (*RoomStatus, error) {
	if p.RoomID == nil {
		return &RoomStatus{
			SolvedEnigmas:    p.SolvedEnigmas,
			AllEnigmasSolved: len(p.SolvedEnigmas) >= a.rules.TotalEnigmas,
			FinalSolved:      p.FinalSolved,
		}, nil
	}

	room, err := a.repo.GetRoom(ctx, p.SessionID, *p.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	remaining := a.authority.BlockRemaining(room.BlockedUntil)
	return &RoomStatus{
		RoomID:                  &room.ID,
		SolvedEnigmas:           room.SolvedEnigmas,
		IsBlocked:               remaining > 0,
		BlockedSecondsRemaining: remaining,
		AllEnigmasSolved:        len(room.SolvedEnigmas) >= a.rules.TotalEnigmas,
		FinalSolved:             room.FinalSolved,
	}, nil
}

// checkCanSolve rejects solves while the round is not running or the room is locked out.
func (a *App) checkCanSolve(ctx context.Context, p *models.Player, s *models.Session) error {
	snap := a.authority.Snapshot(s)
	if !snap.GameActive {
		return fmt.Errorf("game is not running: %w", models.ErrInvalidState)
	}
	if p.RoomID == nil {
		return nil
	}
	room, err := a.repo.GetRoom(ctx, s.ID, *p.RoomID)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if a.authority.BlockRemaining(room.BlockedUntil) > 0 {
		return fmt.Errorf("room %s is blocked: %w", room.Code, models.ErrInvalidState)
	}
	return nil
}

// playerSession resolves a player token and rejects players whose session closed.
func (a *App) playerSession(ctx context.Context, playerToken string) (*models.Player, *models.Session, error) {
	if playerToken == "" {
		return nil, nil, fmt.Errorf("player token is required: %w", models.ErrAuth)
	}
	p, err := a.players.GetPlayerByToken(ctx, playerToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("unknown player token: %w", models.ErrAuth)
		}
		return nil, nil, fmt.Errorf("failed to get player: %w", err)
	}
	s, err := a.sessions.GetSession(ctx, p.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if a.authority.Expired(s) {
		return nil, nil, fmt.Errorf("session %s: %w", s.ID, models.ErrSessionInactive)
	}
	return p, s, nil
}

func (a *App) resolveSession(ctx context.Context, sessionToken string) (*models.Session, error) {
	if sessionToken != "" {
		return a.sessions.Authorize(ctx, sessionToken)
	}
	return a.sessions.CurrentSession(ctx)
}

func (a *App) view(room models.Room) RoomView {
	remaining := a.authority.BlockRemaining(room.BlockedUntil)
	return RoomView{
		Room:                    room,
		IsBlocked:               remaining > 0,
		BlockedSecondsRemaining: remaining,
	}
}

func (a *App) emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) {
	if a.emitter == nil {
		return
	}
	if err := a.emitter.Emit(ctx, sessionID, eventType, payload); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", eventType).
			Msg("failed to emit event")
	}
}

func newRoomCode() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b), nil
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
