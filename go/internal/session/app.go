package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// SessionRepository defines what the app layer needs from the repository
type SessionRepository interface {
	GetPasswordHash(ctx context.Context) (string, error)
	CreateSession(ctx context.Context, s *models.Session, exclusive bool) ([]uuid.UUID, error)
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	GetSessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetCurrentSession(ctx context.Context, now time.Time) (*models.Session, error)
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time, gameActivity bool) error
	DeactivateSession(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateGameTimer(ctx context.Context, id uuid.UUID, game models.GameTimer) error
	ResetSession(ctx context.Context, id uuid.UUID) error
}

// EventEmitter records domain events for the push pipeline
type EventEmitter interface {
	Emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error
}

// DeadlineWaker is told whenever a new session or round deadline exists.
type DeadlineWaker interface {
	Wake()
}

// App handles the master session and its game round
type App struct {
	repo      SessionRepository
	authority *clock.Authority
	emitter   EventEmitter
	rules     models.Rules
	waker     DeadlineWaker
}

// NewApp creates a new session App
func NewApp(repo SessionRepository, authority *clock.Authority, emitter EventEmitter, rules models.Rules) *App {
	return &App{
		repo:      repo,
		authority: authority,
		emitter:   emitter,
		rules:     rules,
	}
}

// SetWaker registers the deadline scheduler.
func (a *App) SetWaker(w DeadlineWaker) {
	a.waker = w
}

// Login verifies the master password and opens a fresh session window.
func (a *App) Login(ctx context.Context, password string) (*LoginResult, error) {
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", models.ErrAuth)
	}

	hash, err := a.repo.GetPasswordHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load password hash: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		log.Warn().Msg("master login rejected")
		return nil, fmt.Errorf("wrong password: %w", models.ErrAuth)
	}

	now := a.authority.Now()
	s := &models.Session{
		ID:             uuid.New(),
		Token:          uuid.NewString(),
		StartedAt:      now,
		ExpiresAt:      now.Add(a.rules.SessionDuration),
		IsActive:       true,
		LastActivityAt: now,
		CreatedAt:      now,
	}

	superseded, err := a.repo.CreateSession(ctx, s, a.rules.SingleActiveSession)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	for _, id := range superseded {
		a.emit(ctx, id, events.SessionEnded, events.SessionPayload{SessionID: id.String(), At: now})
	}
	a.emit(ctx, s.ID, events.SessionStarted, events.SessionPayload{
		SessionID: s.ID.String(),
		ExpiresAt: s.ExpiresAt,
		At:        now,
	})
	a.wake()

	log.Info().
		Str("session_id", s.ID.String()).
		Time("expires_at", s.ExpiresAt).
		Int("superseded", len(superseded)).
		Msg("master session started")

	return &LoginResult{
		Session:          s,
		RemainingSeconds: a.authority.ComputeRemaining(s),
		ExpiresAt:        s.ExpiresAt,
	}, nil
}

// Heartbeat reports the authoritative timers and records master activity.
// Tokens that can no longer act report expired rather than failing.
func (a *App) Heartbeat(ctx context.Context, token string, isGameActive bool) (clock.Snapshot, error) {
	s, err := a.lookup(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return a.expiredSnapshot(), nil
		}
		return clock.Snapshot{}, err
	}

	snap := a.authority.Snapshot(s)
	if snap.Expired {
		a.expire(ctx, s)
		return snap, nil
	}

	if err := a.repo.TouchSession(ctx, s.ID, snap.ServerTime, isGameActive); err != nil {
		return clock.Snapshot{}, fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return snap, nil
}

// GetRemaining is Heartbeat without any writes.
func (a *App) GetRemaining(ctx context.Context, token string) (clock.Snapshot, error) {
	s, err := a.lookup(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return a.expiredSnapshot(), nil
		}
		return clock.Snapshot{}, err
	}
	return a.authority.Snapshot(s), nil
}

// StartGame anchors a new round. Restarting a running round replaces it.
func (a *App) StartGame(ctx context.Context, token string, durationMinutes int) (*GameResult, error) {
	if durationMinutes <= 0 || durationMinutes > a.rules.MaxGameMinutes {
		return nil, fmt.Errorf("game duration must be between 1 and %d minutes: %w", a.rules.MaxGameMinutes, models.ErrInvalidArgument)
	}

	s, err := a.Authorize(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrSessionExpired) {
			return nil, fmt.Errorf("cannot start a game: %w", models.ErrInvalidState)
		}
		return nil, err
	}

	game := a.authority.StartGame(time.Duration(durationMinutes) * time.Minute)
	if err := a.repo.UpdateGameTimer(ctx, s.ID, game); err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	s.Game = game

	a.emit(ctx, s.ID, events.GameStarted, events.GamePayload{
		SessionID:        s.ID.String(),
		EndsAt:           game.EndsAt,
		RemainingSeconds: game.RemainingSeconds,
		At:               *game.StartedAt,
	})
	a.wake()

	log.Info().
		Str("session_id", s.ID.String()).
		Int("duration_minutes", durationMinutes).
		Msg("game started")

	return &GameResult{Game: game, GameRemainingSeconds: a.authority.TickGameTimer(s)}, nil
}

// StopGame ends the round. Stopping a stopped round is a no-op.
func (a *App) StopGame(ctx context.Context, token string) error {
	s, err := a.Authorize(ctx, token)
	if err != nil {
		return err
	}

	if err := a.repo.UpdateGameTimer(ctx, s.ID, clock.StoppedGame()); err != nil {
		return fmt.Errorf("failed to stop game: %w", err)
	}

	a.emit(ctx, s.ID, events.GameStopped, events.GamePayload{SessionID: s.ID.String(), At: a.authority.Now()})
	log.Info().Str("session_id", s.ID.String()).Msg("game stopped")
	return nil
}

// PauseGame freezes the running round.
func (a *App) PauseGame(ctx context.Context, token string) (*GameResult, error) {
	s, err := a.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	game, err := a.authority.PauseGame(s.Game)
	if err != nil {
		return nil, fmt.Errorf("cannot pause: %w", err)
	}
	if err := a.repo.UpdateGameTimer(ctx, s.ID, game); err != nil {
		return nil, fmt.Errorf("failed to pause game: %w", err)
	}

	a.emit(ctx, s.ID, events.GamePaused, events.GamePayload{
		SessionID:        s.ID.String(),
		RemainingSeconds: game.RemainingSeconds,
		At:               a.authority.Now(),
	})
	log.Info().Str("session_id", s.ID.String()).Int("remaining_seconds", game.RemainingSeconds).Msg("game paused")

	return &GameResult{Game: game, GameRemainingSeconds: game.RemainingSeconds}, nil
}

// ResumeGame restarts a paused round from its frozen value.
func (a *App) ResumeGame(ctx context.Context, token string) (*GameResult, error) {
	s, err := a.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	game, err := a.authority.ResumeGame(s.Game)
	if err != nil {
		return nil, fmt.Errorf("cannot resume: %w", err)
	}
	if err := a.repo.UpdateGameTimer(ctx, s.ID, game); err != nil {
		return nil, fmt.Errorf("failed to resume game: %w", err)
	}
	s.Game = game

	a.emit(ctx, s.ID, events.GameResumed, events.GamePayload{
		SessionID:        s.ID.String(),
		EndsAt:           game.EndsAt,
		RemainingSeconds: game.RemainingSeconds,
		At:               a.authority.Now(),
	})
	a.wake()
	log.Info().Str("session_id", s.ID.String()).Msg("game resumed")

	return &GameResult{Game: game, GameRemainingSeconds: a.authority.TickGameTimer(s)}, nil
}

// ResetGame clears rooms, players and the round. The session window and token
// are untouched.
func (a *App) ResetGame(ctx context.Context, token string) error {
	s, err := a.Authorize(ctx, token)
	if err != nil {
		return err
	}

	if err := a.repo.ResetSession(ctx, s.ID); err != nil {
		return fmt.Errorf("failed to reset game: %w", err)
	}

	a.emit(ctx, s.ID, events.GameReset, events.GamePayload{SessionID: s.ID.String(), At: a.authority.Now()})
	log.Info().Str("session_id", s.ID.String()).Msg("game reset")
	return nil
}

// Logout closes the session. Logging out twice succeeds.
func (a *App) Logout(ctx context.Context, token string) error {
	s, err := a.lookup(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("unknown session token: %w", models.ErrAuth)
		}
		return err
	}

	flipped, err := a.repo.DeactivateSession(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	if flipped {
		a.emit(ctx, s.ID, events.SessionEnded, events.SessionPayload{
			SessionID: s.ID.String(),
			ExpiresAt: s.ExpiresAt,
			At:        a.authority.Now(),
		})
		log.Info().Str("session_id", s.ID.String()).Msg("master logged out")
	}
	return nil
}

// CheckSession reports whether players can join right now.
func (a *App) CheckSession(ctx context.Context) (bool, error) {
	_, err := a.CurrentSession(ctx)
	if err != nil {
		if errors.Is(err, models.ErrSessionInactive) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CurrentSession returns the newest active session whose window is open.
func (a *App) CurrentSession(ctx context.Context) (*models.Session, error) {
	s, err := a.repo.GetCurrentSession(ctx, a.authority.Now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("no active session: %w", models.ErrSessionInactive)
		}
		return nil, fmt.Errorf("failed to get current session: %w", err)
	}
	return s, nil
}

// GetSession retrieves a session by ID
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := a.repo.GetSessionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// Authorize resolves a master token to a session that can still act.
func (a *App) Authorize(ctx context.Context, token string) (*models.Session, error) {
	s, err := a.lookup(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("unknown session token: %w", models.ErrAuth)
		}
		return nil, err
	}
	if a.authority.Expired(s) {
		a.expire(ctx, s)
		return nil, fmt.Errorf("session %s: %w", s.ID, models.ErrSessionExpired)
	}
	return s, nil
}

func (a *App) lookup(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("session token is required: %w", models.ErrAuth)
	}
	s, err := a.repo.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// expire flips an active session whose window has closed. Only the caller
// that wins the flip emits the event.
func (a *App) expire(ctx context.Context, s *models.Session) {
	if !s.IsActive {
		return
	}
	flipped, err := a.repo.DeactivateSession(ctx, s.ID)
	if err != nil {
		log.Error().Err(err).Str("session_id", s.ID.String()).Msg("failed to deactivate expired session")
		return
	}
	if flipped {
		a.emit(ctx, s.ID, events.SessionExpired, events.SessionPayload{
			SessionID: s.ID.String(),
			ExpiresAt: s.ExpiresAt,
			At:        a.authority.Now(),
		})
		log.Info().Str("session_id", s.ID.String()).Msg("session expired")
	}
}

func (a *App) expiredSnapshot() clock.Snapshot {
	return clock.Snapshot{Expired: true, ServerTime: a.authority.Now()}
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

func (a *App) wake() {
	if a.waker != nil {
		a.waker.Wake()
	}
}
