package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/sqlutil"
)

const sessionColumns = `id, token, started_at, expires_at, is_active, last_activity_at,
	game_started_at, game_ends_at, game_remaining_seconds, game_last_activity_at, created_at`

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

// Repository implements session data access on Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new session repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// GetPasswordHash returns the stored master password hash
func (r *Repository) GetPasswordHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM game_password WHERE id = 1`).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("master password not configured: %w", models.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get password hash: %w", err)
	}
	return hash, nil
}

// CreateSession inserts a session, deactivating the others first when exclusive
func (r *Repository) CreateSession(ctx context.Context, s *models.Session, exclusive bool) ([]uuid.UUID, error) {
	var superseded []uuid.UUID
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if exclusive {
			ids, err := q.deactivateAll(ctx)
			if err != nil {
				return err
			}
			superseded = ids
		}
		return q.insertSession(ctx, s)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return superseded, nil
}

// GetSessionByToken retrieves a session by its bearer token
func (r *Repository) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE token = $1`, token)
	return scanSession(row)
}

// GetSessionByID retrieves a session by ID
func (r *Repository) GetSessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetCurrentSession retrieves the newest active session whose window contains now
func (r *Repository) GetCurrentSession(ctx context.Context, now time.Time) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE is_active AND expires_at > $1
		ORDER BY created_at DESC
		LIMIT 1`, now)
	return scanSession(row)
}

// TouchSession records master activity
func (r *Repository) TouchSession(ctx context.Context, id uuid.UUID, at time.Time, gameActivity bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET last_activity_at = $2,
		    game_last_activity_at = CASE WHEN $3 AND game_ends_at IS NOT NULL THEN $2 ELSE game_last_activity_at END
		WHERE id = $1`, id, at, gameActivity)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// DeactivateSession flips is_active and reports whether this call did it
func (r *Repository) DeactivateSession(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE game_sessions SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deactivate session: %w", err)
	}
	return n == 1, nil
}

// UpdateGameTimer replaces the round anchors in one statement
func (r *Repository) UpdateGameTimer(ctx context.Context, id uuid.UUID, game models.GameTimer) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET game_started_at = $2, game_ends_at = $3, game_remaining_seconds = $4, game_last_activity_at = $5
		WHERE id = $1`,
		id,
		sqlutil.ToSqlTime(game.StartedAt),
		sqlutil.ToSqlTime(game.EndsAt),
		game.RemainingSeconds,
		sqlutil.ToSqlTime(game.LastActivityAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update game timer: %w", err)
	}
	return expectOne(res, id)
}

// EndGameIfDue stops the round only if it is still anchored at endsAt
func (r *Repository) EndGameIfDue(ctx context.Context, id uuid.UUID, endsAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET game_ends_at = NULL, game_remaining_seconds = 0
		WHERE id = $1 AND game_ends_at = $2`, id, endsAt)
	if err != nil {
		return false, fmt.Errorf("failed to end game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to end game: %w", err)
	}
	return n == 1, nil
}

// ResetSession deletes players (solves cascade) and rooms and zeroes the round
func (r *Repository) ResetSession(ctx context.Context, id uuid.UUID) error {
	err := sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM players WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("delete players: %w", err)
		}
		if _, err := q.db.ExecContext(ctx, `DELETE FROM rooms WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("delete rooms: %w", err)
		}
		res, err := q.db.ExecContext(ctx, `
			UPDATE game_sessions
			SET game_started_at = NULL, game_ends_at = NULL, game_remaining_seconds = 0, game_last_activity_at = NULL
			WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("zero game timer: %w", err)
		}
		return expectOne(res, id)
	})
	if err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return nil
}

// FetchNextDeadline returns the earliest instant an active session changes on its own
func (r *Repository) FetchNextDeadline(ctx context.Context) (*models.Deadline, error) {
	var d models.Deadline
	err := r.db.QueryRowContext(ctx, `
		SELECT id, LEAST(expires_at, COALESCE(game_ends_at, expires_at)) AS due
		FROM game_sessions
		WHERE is_active
		ORDER BY due
		LIMIT 1`).Scan(&d.SessionID, &d.At)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	d.At = d.At.UTC()
	return &d, nil
}

// FetchSessionsDue returns active sessions whose window or round has run out
func (r *Repository) FetchSessionsDue(ctx context.Context, now time.Time, limit int32) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE is_active AND LEAST(expires_at, COALESCE(game_ends_at, expires_at)) <= $1
		ORDER BY LEAST(expires_at, COALESCE(game_ends_at, expires_at))
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch due sessions: %w", err)
	}
	return sessions, nil
}

func (q *queries) deactivateAll(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, `UPDATE game_sessions SET is_active = FALSE WHERE is_active RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("deactivate sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *queries) insertSession(ctx context.Context, s *models.Session) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO game_sessions (id, token, started_at, expires_at, is_active, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Token, s.StartedAt, s.ExpiresAt, s.IsActive, s.LastActivityAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                                   models.Session
		gameStarted, gameEnds, gameActivity sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Token, &s.StartedAt, &s.ExpiresAt, &s.IsActive, &s.LastActivityAt,
		&gameStarted, &gameEnds, &s.Game.RemainingSeconds, &gameActivity, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	s.StartedAt = s.StartedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.LastActivityAt = s.LastActivityAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.Game.StartedAt = sqlutil.FromSqlTime(gameStarted)
	s.Game.EndsAt = sqlutil.FromSqlTime(gameEnds)
	s.Game.LastActivityAt = sqlutil.FromSqlTime(gameActivity)
	return &s, nil
}

func expectOne(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return nil
}
