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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := setupStorage(ctx, getEnv("STORAGE", "postgres"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up storage")
	}
	defer store.Close()

	services, err := setupServices(ctx, store, config.Game, os.Getenv("NATS_URL"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	if err := services.OutboxWorker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}

	go func() {
		if err := services.Orchestrator.RunScheduler(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("deadline scheduler stopped")
		}
	}()

	go func() {
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway stopped")
		}
	}()

	server := setupServer(services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Dur("session_duration", config.Game.SessionDuration).
			Int("total_enigmas", config.Game.TotalEnigmas).
			Msg("escape room server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := services.OutboxWorker.Stop(); err != nil {
		log.Error().Err(err).Msg("outbox worker shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
