package dbconfig

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

// Config holds Postgres connection and pool settings shared by the API
// server, the outbox relay and the gateway.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// URL overrides the fields above when DATABASE_URL is set.
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewConfigFromEnv reads DATABASE_URL or the DB_* variables.
func NewConfigFromEnv() Config {
	return Config{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", "postgres"),
		Database:        getEnv("DB_NAME", "escaperoom"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// DSN is also what pq.Listener and pgx dial.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Target names the database for logs without the password.
func (c Config) Target() string {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "DATABASE_URL"
		}
		return u.Host + u.Path
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
}

// Open connects with the pool limits applied and fails fast when the server
// is unreachable.
func (c Config) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", c.Target(), err)
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}
