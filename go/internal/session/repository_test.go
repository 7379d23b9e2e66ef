package session

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mcdev12/escaperoom/go/internal/dbconfig"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and empties every table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, dbconfig.EnsureSchema(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE session_outbox, enigma_solves, players, rooms, game_sessions`)
	require.NoError(t, err)
	return db
}

func newTestSession(now time.Time, window time.Duration) *models.Session {
	return &models.Session{
		ID:             uuid.New(),
		Token:          uuid.NewString(),
		StartedAt:      now,
		ExpiresAt:      now.Add(window),
		IsActive:       true,
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

func TestRepositorySingleActiveSession(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := newTestSession(now, time.Hour)
	superseded, err := repo.CreateSession(ctx, first, true)
	require.NoError(t, err)
	assert.Empty(t, superseded)

	second := newTestSession(now.Add(time.Second), time.Hour)
	superseded, err = repo.CreateSession(ctx, second, true)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, superseded)

	current, err := repo.GetCurrentSession(ctx, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	old, err := repo.GetSessionByToken(ctx, first.Token)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	_, err = repo.GetSessionByToken(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRepositoryDeactivateOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	s := newTestSession(time.Now().UTC(), time.Hour)
	_, err := repo.CreateSession(ctx, s, false)
	require.NoError(t, err)

	flipped, err := repo.DeactivateSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.DeactivateSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestRepositoryGameTimerAndDeadlines(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	s := newTestSession(now, time.Hour)
	_, err := repo.CreateSession(ctx, s, false)
	require.NoError(t, err)

	ends := now.Add(10 * time.Minute)
	require.NoError(t, repo.UpdateGameTimer(ctx, s.ID, models.GameTimer{StartedAt: &now, EndsAt: &ends, RemainingSeconds: 600}))

	next, err := repo.FetchNextDeadline(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, s.ID, next.SessionID)
	assert.True(t, ends.Equal(next.At))

	due, err := repo.FetchSessionsDue(ctx, ends, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ended, err := repo.EndGameIfDue(ctx, s.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ended, "a different anchor is left alone")

	ended, err = repo.EndGameIfDue(ctx, s.ID, ends)
	require.NoError(t, err)
	assert.True(t, ended)

	stored, err := repo.GetSessionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, stored.Game.Running())

	require.NoError(t, repo.ResetSession(ctx, s.ID))
	assert.ErrorIs(t, repo.UpdateGameTimer(ctx, uuid.New(), models.GameTimer{}), models.ErrNotFound)
}
