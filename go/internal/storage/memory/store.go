// Package memory is a process-local store used when no database is configured
// and by the application tests. Every read-modify-write happens under one
// mutex, so each operation is atomic the same way a single SQL statement is.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

type solveKey struct {
	playerID uuid.UUID
	kind     models.SolveKind
	enigma   int
}

// Store implements the session, room, player and outbox repositories.
type Store struct {
	mu sync.Mutex

	passwordHash string
	sessions     map[uuid.UUID]*models.Session
	rooms        map[uuid.UUID]*models.Room
	players      map[uuid.UUID]*models.Player
	solves       []models.Solve
	solveKeys    map[solveKey]struct{}
	outbox       []*models.OutboxEvent
}

// New creates an empty store. passwordHash is the bcrypt hash master logins
// are checked against.
func New(passwordHash string) *Store {
	return &Store{
		passwordHash: passwordHash,
		sessions:     make(map[uuid.UUID]*models.Session),
		rooms:        make(map[uuid.UUID]*models.Room),
		players:      make(map[uuid.UUID]*models.Player),
		solveKeys:    make(map[solveKey]struct{}),
	}
}

// PingContext always succeeds.
func (s *Store) PingContext(ctx context.Context) error {
	return nil
}

// ---- sessions ----

// GetPasswordHash returns the configured master password hash.
func (s *Store) GetPasswordHash(ctx context.Context) (string, error) {
	if s.passwordHash == "" {
		return "", fmt.Errorf("master password not configured: %w", models.ErrNotFound)
	}
	return s.passwordHash, nil
}

// CreateSession stores a new session. With exclusive set every other active
// session is deactivated in the same step and their ids are returned.
func (s *Store) CreateSession(ctx context.Context, session *models.Session, exclusive bool) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var superseded []uuid.UUID
	if exclusive {
		for id, existing := range s.sessions {
			if existing.IsActive {
				existing.IsActive = false
				superseded = append(superseded, id)
			}
		}
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return superseded, nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.Token == token {
			cp := *session
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("session: %w", models.ErrNotFound)
}

func (s *Store) GetSessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	cp := *session
	return &cp, nil
}

// GetCurrentSession returns the newest active session whose window contains now.
func (s *Store) GetCurrentSession(ctx context.Context, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *models.Session
	for _, session := range s.sessions {
		if !session.IsActive || !session.ExpiresAt.After(now) {
			continue
		}
		if current == nil || session.CreatedAt.After(current.CreatedAt) {
			current = session
		}
	}
	if current == nil {
		return nil, fmt.Errorf("current session: %w", models.ErrNotFound)
	}
	cp := *current
	return &cp, nil
}

func (s *Store) TouchSession(ctx context.Context, id uuid.UUID, at time.Time, gameActivity bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	session.LastActivityAt = at
	if gameActivity && session.Game.Running() {
		session.Game.LastActivityAt = &at
	}
	return nil
}

// DeactivateSession reports whether this call flipped the session to inactive.
func (s *Store) DeactivateSession(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if !session.IsActive {
		return false, nil
	}
	session.IsActive = false
	return true, nil
}

func (s *Store) UpdateGameTimer(ctx context.Context, id uuid.UUID, game models.GameTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	session.Game = game
	return nil
}

// EndGameIfDue stops the round only if it is still the one anchored at endsAt.
func (s *Store) EndGameIfDue(ctx context.Context, id uuid.UUID, endsAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return false, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if session.Game.EndsAt == nil || !session.Game.EndsAt.Equal(endsAt) {
		return false, nil
	}
	session.Game.EndsAt = nil
	session.Game.RemainingSeconds = 0
	return true, nil
}

// ResetSession drops every room and player of the session and zeroes the round.
func (s *Store) ResetSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}

	removed := make(map[uuid.UUID]struct{})
	for pid, p := range s.players {
		if p.SessionID == id {
			removed[pid] = struct{}{}
			delete(s.players, pid)
		}
	}
	for rid, r := range s.rooms {
		if r.SessionID == id {
			delete(s.rooms, rid)
		}
	}

	kept := s.solves[:0]
	for _, solve := range s.solves {
		if _, gone := removed[solve.PlayerID]; gone {
			delete(s.solveKeys, solveKey{solve.PlayerID, solve.Kind, solve.Enigma})
			continue
		}
		kept = append(kept, solve)
	}
	s.solves = kept

	session.Game = models.GameTimer{}
	return nil
}

// FetchNextDeadline returns the earliest instant an active session changes on
// its own, or nil when nothing is scheduled.
func (s *Store) FetchNextDeadline(ctx context.Context) (*models.Deadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *models.Deadline
	for _, session := range s.sessions {
		if !session.IsActive {
			continue
		}
		due := sessionDue(session)
		if next == nil || due.Before(next.At) {
			next = &models.Deadline{SessionID: session.ID, At: due}
		}
	}
	return next, nil
}

func (s *Store) FetchSessionsDue(ctx context.Context, now time.Time, limit int32) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.Session
	for _, session := range s.sessions {
		if !session.IsActive || sessionDue(session).After(now) {
			continue
		}
		due = append(due, *session)
	}
	sort.Slice(due, func(i, j int) bool {
		return sessionDue(&due[i]).Before(sessionDue(&due[j]))
	})
	if limit > 0 && len(due) > int(limit) {
		due = due[:limit]
	}
	return due, nil
}

func sessionDue(session *models.Session) time.Time {
	if session.Game.EndsAt != nil && session.Game.EndsAt.Before(session.ExpiresAt) {
		return *session.Game.EndsAt
	}
	return session.ExpiresAt
}
