package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/escaperoom/go/internal/dbconfig"
	"github.com/mcdev12/escaperoom/go/internal/gateway"
	"github.com/mcdev12/escaperoom/go/internal/players"
	"github.com/mcdev12/escaperoom/go/internal/session"
)

// Standalone push gateway: JetStream session events → websocket subscribers.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	port := getEnv("GATEWAY_PORT", "8081")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	db, err := dbCfg.Open(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().
		Str("database", dbCfg.Target()).
		Str("nats_url", natsURL).
		Str("port", port).
		Msg("starting session gateway")

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.UseJetStream = true
	gatewayConfig.JetStreamConfig.URL = natsURL

	resolver := gateway.NewStoreResolver(session.NewRepository(db), players.NewRepository(db))
	gatewayService, err := gateway.NewService(ctx, gatewayConfig, resolver)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !gatewayService.NATSConnected() {
			http.Error(w, "NATS disconnected", http.StatusServiceUnavailable)
			return
		}
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// No WriteTimeout: websocket connections are long lived.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     cors.AllowAll().Handler(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("session gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
