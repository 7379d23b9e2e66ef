package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/escaperoom/go/internal/dbconfig"
	"golang.org/x/crypto/bcrypt"
)

// Sets the facilitator password: seed_password -password secret
func main() {
	_ = godotenv.Load()

	password := flag.String("password", os.Getenv("MASTER_PASSWORD"), "facilitator password")
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "a password is required (-password or MASTER_PASSWORD)")
		os.Exit(2)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Make sure the tables exist
	if _, err := pool.Exec(ctx, dbconfig.Schema()); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert the single credentials row
	tag, err := pool.Exec(ctx, `
            INSERT INTO game_password (id, password_hash, updated_at)
            VALUES (1, $1, now())
            ON CONFLICT (id) DO UPDATE
              SET password_hash = EXCLUDED.password_hash,
                  updated_at    = EXCLUDED.updated_at
        `, string(hash))
	if err != nil {
		fmt.Fprintf(os.Stderr, "upsert password: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Password seed complete: %d row(s) written to %s\n", tag.RowsAffected(), cfg.Database)
}
