package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

const outboxColumns = `id, session_id, event_type, payload, metadata, created_at, sent_at`

// Repository implements outbox data access on Postgres
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new outbox repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// InsertOutboxEvent stores an event; the table trigger sends the NOTIFY
func (r *Repository) InsertOutboxEvent(ctx context.Context, event models.OutboxEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_outbox (id, session_id, event_type, payload, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.SessionID, event.EventType, []byte(event.Payload),
		sqlutil.ToNullRawMessage(event.Metadata), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", event.EventType, err)
	}
	return nil
}

// FetchUnsentOutbox returns the oldest unsent events
func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM session_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		event, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	return events, nil
}

// FetchOutboxByID returns one event if it has not been sent yet
func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+outboxColumns+`
		FROM session_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)
	event, err := scanOutbox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("outbox event not found or already sent: %w", models.ErrNotFound)
		}
		return nil, err
	}
	return event, nil
}

// MarkOutboxSent stamps sent_at on the given events
func (r *Repository) MarkOutboxSent(ctx context.Context, ids ...uuid.UUID) error {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE session_outbox SET sent_at = now() WHERE id = ANY($1::uuid[]) AND sent_at IS NULL`,
		pq.Array(strs))
	if err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountUnsentOutbox(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_outbox WHERE sent_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutbox(row rowScanner) (*models.OutboxEvent, error) {
	var (
		event    models.OutboxEvent
		payload  []byte
		metadata pqtype.NullRawMessage
		sentAt   sql.NullTime
	)
	err := row.Scan(&event.ID, &event.SessionID, &event.EventType, &payload, &metadata, &event.CreatedAt, &sentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan outbox event: %w", err)
	}
	event.Payload = payload
	event.Metadata = sqlutil.FromNullRawMessage(metadata)
	event.CreatedAt = event.CreatedAt.UTC()
	event.SentAt = sqlutil.FromSqlTime(sentAt)
	return &event, nil
}
