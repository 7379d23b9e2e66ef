package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/escaperoom/go/internal/models"
)

const (
	RoleMaster = "master"
	RolePlayer = "player"
)

type SessionLookup interface {
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
}

type PlayerLookup interface {
	GetPlayerByToken(ctx context.Context, token string) (*models.Player, error)
}

// TokenResolver maps a bearer token to the session whose events it may see.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (sessionID string, role string, err error)
}

// StoreResolver tries the token as a master session token first, then as a
// player token.
type StoreResolver struct {
	sessions SessionLookup
	players  PlayerLookup
}

func NewStoreResolver(sessions SessionLookup, players PlayerLookup) *StoreResolver {
	return &StoreResolver{sessions: sessions, players: players}
}

func (r *StoreResolver) Resolve(ctx context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", models.ErrAuth
	}

	s, err := r.sessions.GetSessionByToken(ctx, token)
	switch {
	case err == nil:
		if !s.IsActive {
			return "", "", models.ErrSessionInactive
		}
		return s.ID.String(), RoleMaster, nil
	case !errors.Is(err, models.ErrNotFound):
		return "", "", fmt.Errorf("failed to look up session token: %w", err)
	}

	p, err := r.players.GetPlayerByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", "", models.ErrAuth
		}
		return "", "", fmt.Errorf("failed to look up player token: %w", err)
	}
	return p.SessionID.String(), RolePlayer, nil
}
