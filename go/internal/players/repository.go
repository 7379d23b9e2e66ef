package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/sqlutil"
)

const playerSelect = `
	SELECT p.id, p.session_id, p.room_id, p.player_token, p.nickname, p.current_phase, p.current_enigma,
	       p.completed_at, p.is_connected, p.last_activity_at, p.created_at,
	       COALESCE((SELECT array_agg(s.enigma ORDER BY s.enigma)
	                 FROM enigma_solves s WHERE s.player_id = p.id AND s.kind = 'enigma'), '{}') AS solved_enigmas,
	       EXISTS (SELECT 1 FROM enigma_solves s WHERE s.player_id = p.id AND s.kind = 'final') AS final_solved
	FROM players p`

// Repository implements player data access on Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new players repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// CreatePlayer inserts a player
func (r *Repository) CreatePlayer(ctx context.Context, p *models.Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (id, session_id, room_id, player_token, nickname, current_phase, current_enigma,
		                     is_connected, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.SessionID, sqlutil.ToNullUUID(p.RoomID), p.Token, p.Nickname, string(p.CurrentPhase),
		p.CurrentEnigma, p.IsConnected, p.LastActivityAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

// GetPlayerByToken retrieves a player with its solved views
func (r *Repository) GetPlayerByToken(ctx context.Context, token string) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx, playerSelect+` WHERE p.player_token = $1`, token)
	p, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// TouchPlayer records a heartbeat
func (r *Repository) TouchPlayer(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, id, `UPDATE players SET is_connected = TRUE, last_activity_at = $2 WHERE id = $1`, id, at)
}

// MarkPlayerLeft records a close notification
func (r *Repository) MarkPlayerLeft(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, id, `UPDATE players SET is_connected = FALSE WHERE id = $1`, id)
}

// UpdatePlayerProgress stores the advisory phase and puzzle pointer
func (r *Repository) UpdatePlayerProgress(ctx context.Context, id uuid.UUID, phase models.Phase, enigma int) error {
	return r.exec(ctx, id, `UPDATE players SET current_phase = $2, current_enigma = $3 WHERE id = $1`, id, string(phase), enigma)
}

// ListPlayers lists the players of a session in join order, optionally for one room
func (r *Repository) ListPlayers(ctx context.Context, sessionID uuid.UUID, roomID *uuid.UUID) ([]models.Player, error) {
	rows, err := r.db.QueryContext(ctx, playerSelect+`
		WHERE p.session_id = $1 AND ($2::uuid IS NULL OR p.room_id = $2)
		ORDER BY p.created_at`, sessionID, sqlutil.ToNullUUID(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}

// CountConnectedPlayers counts players that signalled presence at or after since
func (r *Repository) CountConnectedPlayers(ctx context.Context, sessionID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM players
		WHERE session_id = $1 AND is_connected AND last_activity_at >= $2`, sessionID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count connected players: %w", err)
	}
	return n, nil
}

func (r *Repository) exec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var (
		p         models.Player
		roomID    uuid.NullUUID
		phase     string
		completed sql.NullTime
		solved    pq.Int64Array
	)
	err := row.Scan(
		&p.ID, &p.SessionID, &roomID, &p.Token, &p.Nickname, &phase, &p.CurrentEnigma,
		&completed, &p.IsConnected, &p.LastActivityAt, &p.CreatedAt,
		&solved, &p.FinalSolved,
	)
	if err != nil {
		return nil, err
	}
	p.RoomID = sqlutil.FromNullUUID(roomID)
	p.CurrentPhase = models.Phase(phase)
	p.CompletedAt = sqlutil.FromSqlTime(completed)
	p.LastActivityAt = p.LastActivityAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.SolvedEnigmas = make([]int, len(solved))
	for i, e := range solved {
		p.SolvedEnigmas[i] = int(e)
	}
	return &p, nil
}
