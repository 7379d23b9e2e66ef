package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/escaperoom/go/internal/dbconfig"
	"github.com/mcdev12/escaperoom/go/internal/orchestrator"
	"github.com/mcdev12/escaperoom/go/internal/outbox"
	"github.com/mcdev12/escaperoom/go/internal/players"
	"github.com/mcdev12/escaperoom/go/internal/rooms"
	"github.com/mcdev12/escaperoom/go/internal/session"
	"github.com/mcdev12/escaperoom/go/internal/storage/memory"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type sessionStore interface {
	session.SessionRepository
	orchestrator.DeadlineRepository
}

// storage is the repository set for one backend.
type storage struct {
	sessions sessionStore
	players  players.PlayersRepository
	rooms    rooms.RoomsRepository
	outbox   outbox.OutboxRepository
	pinger   outbox.Pinger
	db       *sql.DB
}

func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func setupStorage(ctx context.Context, kind string) (*storage, error) {
	switch kind {
	case "memory":
		return setupMemory()
	case "postgres", "":
		return setupPostgres(ctx)
	default:
		return nil, fmt.Errorf("unknown storage %q", kind)
	}
}

func setupMemory() (*storage, error) {
	password := getEnv("MASTER_PASSWORD", "")
	if password == "" {
		return nil, fmt.Errorf("MASTER_PASSWORD is required with memory storage")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash master password: %w", err)
	}

	store := memory.New(string(hash))
	log.Info().Msg("using in-memory storage")
	return &storage{
		sessions: store,
		players:  store,
		rooms:    store,
		outbox:   store,
		pinger:   store,
	}, nil
}

func setupPostgres(ctx context.Context) (*storage, error) {
	cfg := dbconfig.NewConfigFromEnv()

	database, err := cfg.Open(ctx)
	if err != nil {
		return nil, err
	}

	if err := dbconfig.EnsureSchema(ctx, database); err != nil {
		database.Close()
		return nil, err
	}

	log.Info().
		Str("database", cfg.Target()).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to database")

	return &storage{
		sessions: session.NewRepository(database),
		players:  players.NewRepository(database),
		rooms:    rooms.NewRepository(database),
		outbox:   outbox.NewRepository(database),
		pinger:   database,
		db:       database,
	}, nil
}
