package rooms

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

const roomSelect = `
	SELECT r.id, r.session_id, r.room_code, r.room_name, r.max_players, r.is_active, r.blocked_until, r.created_at,
	       (SELECT count(*) FROM players p WHERE p.room_id = r.id) AS player_count,
	       COALESCE((SELECT array_agg(DISTINCT s.enigma ORDER BY s.enigma)
	                 FROM enigma_solves s WHERE s.room_id = r.id AND s.kind = 'enigma'), '{}') AS solved_enigmas,
	       EXISTS (SELECT 1 FROM enigma_solves s WHERE s.room_id = r.id AND s.kind = 'final') AS final_solved
	FROM rooms r`

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

// Repository implements room and solve-log data access on Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new rooms repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// CreateRoom inserts a room
func (r *Repository) CreateRoom(ctx context.Context, room *models.Room) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, session_id, room_code, room_name, max_players, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		room.ID, room.SessionID, room.Code, room.Name, room.MaxPlayers, room.IsActive, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room of the session with its derived progress
func (r *Repository) GetRoom(ctx context.Context, sessionID, roomID uuid.UUID) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx, roomSelect+` WHERE r.id = $1 AND r.session_id = $2`, roomID, sessionID)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListRooms lists the rooms of a session in creation order
func (r *Repository) ListRooms(ctx context.Context, sessionID uuid.UUID) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx, roomSelect+` WHERE r.session_id = $1 ORDER BY r.created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// DeleteRoom deletes a room; member players and solves keep their rows with a NULL room
func (r *Repository) DeleteRoom(ctx context.Context, sessionID, roomID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1 AND session_id = $2`, roomID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
	}
	return nil
}

// AssignPlayer sets a player's room. The room row is locked so concurrent
// assignments cannot overfill it.
func (r *Repository) AssignPlayer(ctx context.Context, sessionID, playerID uuid.UUID, roomID *uuid.UUID) error {
	return sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if roomID == nil {
			return q.unassignPlayer(ctx, sessionID, playerID)
		}

		var maxPlayers int
		err := q.db.QueryRowContext(ctx,
			`SELECT max_players FROM rooms WHERE id = $1 AND session_id = $2 FOR UPDATE`,
			*roomID, sessionID).Scan(&maxPlayers)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("room %s: %w", *roomID, models.ErrNotFound)
			}
			return fmt.Errorf("failed to lock room: %w", err)
		}

		res, err := q.db.ExecContext(ctx, `
			UPDATE players SET room_id = $3
			WHERE id = $2 AND session_id = $1
			  AND (room_id IS NOT DISTINCT FROM $3
			       OR (SELECT count(*) FROM players WHERE room_id = $3) < $4)`,
			sessionID, playerID, *roomID, maxPlayers)
		if err != nil {
			return fmt.Errorf("failed to assign player: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to assign player: %w", err)
		}
		if n == 1 {
			return nil
		}

		exists, err := q.playerExists(ctx, sessionID, playerID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("player %s: %w", playerID, models.ErrNotFound)
		}
		return fmt.Errorf("room %s is full: %w", *roomID, models.ErrInvalidState)
	})
}

// SetRoomBlockedUntil overwrites the lockout end; nil clears it
func (r *Repository) SetRoomBlockedUntil(ctx context.Context, roomID uuid.UUID, until *time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET blocked_until = $2 WHERE id = $1`, roomID, sqlutil.ToSqlTime(until))
	if err != nil {
		return fmt.Errorf("failed to set blocked_until: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set blocked_until: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
	}
	return nil
}

// InsertSolve appends to the solve log; a duplicate is silently ignored
func (r *Repository) InsertSolve(ctx context.Context, solve models.Solve) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO enigma_solves (id, session_id, player_id, room_id, kind, enigma, solved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id, kind, enigma) DO NOTHING`,
		solve.ID, solve.SessionID, solve.PlayerID, sqlutil.ToNullUUID(solve.RoomID),
		string(solve.Kind), solve.Enigma, solve.SolvedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert solve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert solve: %w", err)
	}
	return n == 1, nil
}

// MarkPlayerCompleted stamps completed_at once the player's solve count reaches total
func (r *Repository) MarkPlayerCompleted(ctx context.Context, playerID uuid.UUID, at time.Time, total int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players SET completed_at = COALESCE(completed_at, $2)
		WHERE id = $1
		  AND (SELECT count(*) FROM enigma_solves WHERE player_id = $1 AND kind = 'enigma') >= $3`,
		playerID, at, total)
	if err != nil {
		return false, fmt.Errorf("failed to mark player completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark player completed: %w", err)
	}
	return n == 1, nil
}

func (q *queries) unassignPlayer(ctx context.Context, sessionID, playerID uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `UPDATE players SET room_id = NULL WHERE id = $1 AND session_id = $2`, playerID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to unassign player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unassign player: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("player %s: %w", playerID, models.ErrNotFound)
	}
	return nil
}

func (q *queries) playerExists(ctx context.Context, sessionID, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE id = $1 AND session_id = $2)`,
		playerID, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check player: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		room    models.Room
		blocked sql.NullTime
		solved  pq.Int64Array
	)
	err := row.Scan(
		&room.ID, &room.SessionID, &room.Code, &room.Name, &room.MaxPlayers, &room.IsActive, &blocked, &room.CreatedAt,
		&room.PlayerCount, &solved, &room.FinalSolved,
	)
	if err != nil {
		return nil, err
	}
	room.BlockedUntil = sqlutil.FromSqlTime(blocked)
	room.CreatedAt = room.CreatedAt.UTC()
	room.SolvedEnigmas = make([]int, len(solved))
	for i, e := range solved {
		room.SolvedEnigmas[i] = int(e)
	}
	return &room, nil
}
