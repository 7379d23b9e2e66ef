package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[p.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", p.SessionID, models.ErrNotFound)
	}
	cp := *p
	cp.SolvedEnigmas = nil
	cp.FinalSolved = false
	s.players[p.ID] = &cp
	return nil
}

func (s *Store) GetPlayerByToken(ctx context.Context, token string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.players {
		if p.Token == token {
			view := s.playerView(p)
			return &view, nil
		}
	}
	return nil, fmt.Errorf("player: %w", models.ErrNotFound)
}

// TouchPlayer records a heartbeat: the player is connected as of at.
func (s *Store) TouchPlayer(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	p.IsConnected = true
	p.LastActivityAt = at
	return nil
}

func (s *Store) MarkPlayerLeft(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	p.IsConnected = false
	return nil
}

func (s *Store) UpdatePlayerProgress(ctx context.Context, id uuid.UUID, phase models.Phase, enigma int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	p.CurrentPhase = phase
	p.CurrentEnigma = enigma
	return nil
}

// ListPlayers returns the players of a session in join order, optionally
// limited to one room.
func (s *Store) ListPlayers(ctx context.Context, sessionID uuid.UUID, roomID *uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]models.Player, 0)
	for _, p := range s.players {
		if p.SessionID != sessionID {
			continue
		}
		if roomID != nil && (p.RoomID == nil || *p.RoomID != *roomID) {
			continue
		}
		players = append(players, s.playerView(p))
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].CreatedAt.Before(players[j].CreatedAt)
	})
	return players, nil
}

// CountConnectedPlayers counts players that signalled presence at or after since.
func (s *Store) CountConnectedPlayers(ctx context.Context, sessionID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.players {
		if p.SessionID == sessionID && p.IsConnected && !p.LastActivityAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) playerView(p *models.Player) models.Player {
	view := *p
	view.SolvedEnigmas = []int{}
	view.FinalSolved = false
	for _, solve := range s.solves {
		if solve.PlayerID != p.ID {
			continue
		}
		switch solve.Kind {
		case models.SolveKindEnigma:
			view.SolvedEnigmas = append(view.SolvedEnigmas, solve.Enigma)
		case models.SolveKindFinal:
			view.FinalSolved = true
		}
	}
	sort.Ints(view.SolvedEnigmas)
	return view
}
