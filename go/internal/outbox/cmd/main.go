package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/escaperoom/go/internal/dbconfig"
	"github.com/mcdev12/escaperoom/go/internal/outbox"
)

// Standalone relay: LISTEN on the session outbox and forward rows to JetStream.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()
	db, err := cfg.Open(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()
	log.Info().Str("database", cfg.Target()).Msg("connected to database")

	jsCfg := outbox.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	clock := clockwork.NewRealClock()
	app := outbox.NewApp(outbox.NewRepository(db), clock)

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	notifier, err := outbox.DialNotifier(ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("listen for outbox notifications")
	}
	listener := outbox.NewListener(app, notifier, publisher, ltCfg, clock)

	health := outbox.NewHealthChecker(listener, db, app, publisher.Conn(), clock, time.Minute)
	healthAddr := os.Getenv("HEALTH_ADDR")
	if healthAddr == "" {
		healthAddr = ":8082"
	}
	healthSrv := &http.Server{Addr: healthAddr, Handler: health}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msg("starting outbox listener")
		errCh <- listener.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("listener exited unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	log.Info().Msg("graceful shutdown complete")
}
