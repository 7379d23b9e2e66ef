package players

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MaxNicknameLength is counted in runes.
const MaxNicknameLength = 32

// PlayersRepository defines what the app layer needs from the repository
type PlayersRepository interface {
	CreatePlayer(ctx context.Context, p *models.Player) error
	GetPlayerByToken(ctx context.Context, token string) (*models.Player, error)
	TouchPlayer(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkPlayerLeft(ctx context.Context, id uuid.UUID) error
	UpdatePlayerProgress(ctx context.Context, id uuid.UUID, phase models.Phase, enigma int) error
	ListPlayers(ctx context.Context, sessionID uuid.UUID, roomID *uuid.UUID) ([]models.Player, error)
	CountConnectedPlayers(ctx context.Context, sessionID uuid.UUID, since time.Time) (int, error)
}

// SessionProvider resolves the session players belong to
type SessionProvider interface {
	Authorize(ctx context.Context, token string) (*models.Session, error)
	CurrentSession(ctx context.Context) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// EventEmitter records domain events for the push pipeline
type EventEmitter interface {
	Emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error
}

// App handles player identity, presence and progress
type App struct {
	repo      PlayersRepository
	sessions  SessionProvider
	authority *clock.Authority
	emitter   EventEmitter
	rules     models.Rules
}

// NewApp creates a new players App
func NewApp(repo PlayersRepository, sessions SessionProvider, authority *clock.Authority, emitter EventEmitter, rules models.Rules) *App {
	return &App{
		repo:      repo,
		sessions:  sessions,
		authority: authority,
		emitter:   emitter,
		rules:     rules,
	}
}

// Join registers a device in the current session. Nicknames need not be unique.
func (a *App) Join(ctx context.Context, nickname string) (*JoinResult, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("nickname is empty: %w", models.ErrNicknameInvalid)
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return nil, fmt.Errorf("nickname longer than %d characters: %w", MaxNicknameLength, models.ErrNicknameInvalid)
	}

	s, err := a.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	now := a.authority.Now()
	p := &models.Player{
		ID:             uuid.New(),
		SessionID:      s.ID,
		Token:          uuid.NewString(),
		Nickname:       nickname,
		CurrentPhase:   models.PhaseWaiting,
		IsConnected:    true,
		LastActivityAt: now,
		CreatedAt:      now,
		SolvedEnigmas:  []int{},
	}
	if err := a.repo.CreatePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	a.emit(ctx, s.ID, events.PlayerJoined, events.PlayerPayload{
		PlayerID: p.ID.String(),
		Nickname: p.Nickname,
		At:       now,
	})
	log.Info().
		Str("session_id", s.ID.String()).
		Str("player_id", p.ID.String()).
		Str("nickname", p.Nickname).
		Msg("player joined")

	return &JoinResult{Player: p, GameActive: a.authority.Snapshot(s).GameActive}, nil
}

// Heartbeat records presence and reports the round as the server sees it.
func (a *App) Heartbeat(ctx context.Context, playerToken string) (*HeartbeatResult, error) {
	p, err := a.player(ctx, playerToken)
	if err != nil {
		return nil, err
	}
	s, err := a.sessions.GetSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	snap := a.authority.Snapshot(s)
	if snap.Expired {
		return &HeartbeatResult{Expired: true, Player: p}, nil
	}

	if err := a.repo.TouchPlayer(ctx, p.ID, snap.ServerTime); err != nil {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}
	connected, err := a.repo.CountConnectedPlayers(ctx, s.ID, snap.ServerTime.Add(-a.rules.StaleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to count connected players: %w", err)
	}

	return &HeartbeatResult{
		GameActive:           snap.GameActive,
		GamePaused:           snap.GamePaused,
		GameRemainingSeconds: snap.GameRemainingSeconds,
		ConnectedPlayers:     connected,
		Player:               p,
	}, nil
}

// Leave is the best-effort close notification. The next heartbeat reconnects.
func (a *App) Leave(ctx context.Context, playerToken string) error {
	p, err := a.player(ctx, playerToken)
	if err != nil {
		return err
	}
	if err := a.repo.MarkPlayerLeft(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to mark player left: %w", err)
	}
	log.Debug().Str("player_id", p.ID.String()).Msg("player left")
	return nil
}

// UpdateProgress stores the player's advisory phase and puzzle pointer.
func (a *App) UpdateProgress(ctx context.Context, playerToken string, phase string, enigma int) error {
	parsed, err := models.ParsePhase(phase)
	if err != nil {
		return err
	}
	if enigma < 0 || enigma > a.rules.TotalEnigmas {
		return fmt.Errorf("enigma must be between 0 and %d: %w", a.rules.TotalEnigmas, models.ErrInvalidArgument)
	}

	p, err := a.player(ctx, playerToken)
	if err != nil {
		return err
	}
	if err := a.repo.UpdatePlayerProgress(ctx, p.ID, parsed, enigma); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// GetPlayers returns the leaderboard of the master's session, or of the
// current session when no token is given. With no session the list is empty.
func (a *App) GetPlayers(ctx context.Context, sessionToken string, roomID *uuid.UUID) ([]PlayerView, error) {
	var (
		s   *models.Session
		err error
	)
	if sessionToken != "" {
		s, err = a.sessions.Authorize(ctx, sessionToken)
	} else {
		s, err = a.sessions.CurrentSession(ctx)
		if errors.Is(err, models.ErrSessionInactive) {
			return []PlayerView{}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	players, err := a.repo.ListPlayers(ctx, s.ID, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	now := a.authority.Now()
	views := make([]PlayerView, len(players))
	for i := range players {
		p := players[i]
		liveness := p.Liveness(now, a.rules.StaleAfter)
		p.IsConnected = liveness.Connected()
		views[i] = PlayerView{
			Player:   p,
			Score:    a.rules.Score(len(p.SolvedEnigmas), p.FinalSolved),
			Liveness: liveness,
		}
	}
	SortLeaderboard(views)
	return views, nil
}

// SortLeaderboard orders by score, then earliest completion, then join order.
func SortLeaderboard(views []PlayerView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.CompletedAt != nil && b.CompletedAt == nil:
			return true
		case a.CompletedAt == nil && b.CompletedAt != nil:
			return false
		case a.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt):
			return a.CompletedAt.Before(*b.CompletedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (a *App) player(ctx context.Context, playerToken string) (*models.Player, error) {
	if playerToken == "" {
		return nil, fmt.Errorf("player token is required: %w", models.ErrAuth)
	}
	p, err := a.repo.GetPlayerByToken(ctx, playerToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("unknown player token: %w", models.ErrAuth)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
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
