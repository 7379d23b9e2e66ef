package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

func (s *Store) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[room.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", room.SessionID, models.ErrNotFound)
	}
	for _, existing := range s.rooms {
		if existing.SessionID == room.SessionID && existing.Code == room.Code {
			return fmt.Errorf("room code %s already used in session", room.Code)
		}
	}
	cp := *room
	cp.SolvedEnigmas = nil
	s.rooms[room.ID] = &cp
	return nil
}

func (s *Store) GetRoom(ctx context.Context, sessionID, roomID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.SessionID != sessionID {
		return nil, fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
	}
	view := s.roomView(room)
	return &view, nil
}

func (s *Store) ListRooms(ctx context.Context, sessionID uuid.UUID) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]models.Room, 0)
	for _, room := range s.rooms {
		if room.SessionID == sessionID {
			rooms = append(rooms, s.roomView(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// DeleteRoom removes the room and unassigns its members.
func (s *Store) DeleteRoom(ctx context.Context, sessionID, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.SessionID != sessionID {
		return fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
	}
	delete(s.rooms, roomID)

	for _, p := range s.players {
		if p.RoomID != nil && *p.RoomID == roomID {
			p.RoomID = nil
		}
	}
	for i := range s.solves {
		if s.solves[i].RoomID != nil && *s.solves[i].RoomID == roomID {
			s.solves[i].RoomID = nil
		}
	}
	return nil
}

// AssignPlayer moves a player into roomID, or out of any room when roomID is nil.
func (s *Store) AssignPlayer(ctx context.Context, sessionID, playerID uuid.UUID, roomID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.SessionID != sessionID {
		return fmt.Errorf("player %s: %w", playerID, models.ErrNotFound)
	}
	if roomID == nil {
		p.RoomID = nil
		return nil
	}

	room, ok := s.rooms[*roomID]
	if !ok || room.SessionID != sessionID {
		return fmt.Errorf("room %s: %w", *roomID, models.ErrNotFound)
	}
	if p.RoomID != nil && *p.RoomID == *roomID {
		return nil
	}
	if s.memberCount(*roomID) >= room.MaxPlayers {
		return fmt.Errorf("room %s is full: %w", room.Code, models.ErrInvalidState)
	}
	id := *roomID
	p.RoomID = &id
	return nil
}

func (s *Store) SetRoomBlockedUntil(ctx context.Context, roomID uuid.UUID, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
	}
	room.BlockedUntil = until
	return nil
}

// InsertSolve adds the solve unless the player already has it. It reports
// whether a row was added.
func (s *Store) InsertSolve(ctx context.Context, solve models.Solve) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[solve.PlayerID]; !ok {
		return false, fmt.Errorf("player %s: %w", solve.PlayerID, models.ErrNotFound)
	}
	key := solveKey{solve.PlayerID, solve.Kind, solve.Enigma}
	if _, dup := s.solveKeys[key]; dup {
		return false, nil
	}
	s.solveKeys[key] = struct{}{}
	s.solves = append(s.solves, solve)
	return true, nil
}

// MarkPlayerCompleted sets completed_at once the player has solved total
// enigmas. The first completion time is kept.
func (s *Store) MarkPlayerCompleted(ctx context.Context, playerID uuid.UUID, at time.Time, total int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return false, fmt.Errorf("player %s: %w", playerID, models.ErrNotFound)
	}
	if len(s.playerView(p).SolvedEnigmas) < total {
		return false, nil
	}
	if p.CompletedAt == nil {
		p.CompletedAt = &at
	}
	return true, nil
}

func (s *Store) memberCount(roomID uuid.UUID) int {
	n := 0
	for _, p := range s.players {
		if p.RoomID != nil && *p.RoomID == roomID {
			n++
		}
	}
	return n
}

func (s *Store) roomView(room *models.Room) models.Room {
	view := *room
	view.PlayerCount = s.memberCount(room.ID)
	view.SolvedEnigmas = []int{}
	view.FinalSolved = false

	seen := make(map[int]struct{})
	for _, solve := range s.solves {
		if solve.RoomID == nil || *solve.RoomID != room.ID {
			continue
		}
		switch solve.Kind {
		case models.SolveKindEnigma:
			if _, ok := seen[solve.Enigma]; !ok {
				seen[solve.Enigma] = struct{}{}
				view.SolvedEnigmas = append(view.SolvedEnigmas, solve.Enigma)
			}
		case models.SolveKindFinal:
			view.FinalSolved = true
		}
	}
	sort.Ints(view.SolvedEnigmas)
	return view
}
