package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/clock"
	"github.com/mcdev12/escaperoom/go/internal/gateway"
	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/mcdev12/escaperoom/go/internal/orchestrator"
	"github.com/mcdev12/escaperoom/go/internal/outbox"
	"github.com/mcdev12/escaperoom/go/internal/players"
	"github.com/mcdev12/escaperoom/go/internal/rooms"
	"github.com/mcdev12/escaperoom/go/internal/session"
	"github.com/nats-io/nats.go"
)

type Services struct {
	Session *session.Service
	Players *players.Service
	Rooms   *rooms.Service

	Gateway      *gateway.Service
	Orchestrator *orchestrator.Orchestrator
	OutboxWorker *outbox.Worker
	Health       *outbox.HealthChecker

	jetstream *outbox.JetStreamPublisher
}

func (s *Services) Close() {
	if s.jetstream != nil {
		s.jetstream.Close()
	}
}

func setupServices(ctx context.Context, store *storage, rules models.Rules, natsURL string) (*Services, error) {
	// Wire up dependency injection chain
	// Storage layer → App layer → Service layer, plus the background workers
	clk := clockwork.NewRealClock()
	authority := clock.NewAuthority(clk)

	outboxApp := outbox.NewApp(store.outbox, clk)

	// Session
	sessionApp := session.NewApp(store.sessions, authority, outboxApp, rules)
	sessionService := session.NewService(sessionApp)

	// Players
	playersApp := players.NewApp(store.players, sessionApp, authority, outboxApp, rules)
	playersService := players.NewService(playersApp, sessionApp)

	// Rooms
	roomsApp := rooms.NewApp(store.rooms, store.players, sessionApp, authority, outboxApp, rules)
	roomsService := rooms.NewService(roomsApp)

	orch := orchestrator.NewOrchestrator(store.sessions, outboxApp, clk, orchestrator.DefaultConfig())
	sessionApp.SetWaker(orch)

	services := &Services{
		Session:      sessionService,
		Players:      playersService,
		Rooms:        roomsService,
		Orchestrator: orch,
	}

	// The publisher declares the stream, so it must exist before the
	// gateway consumer attaches to it.
	var natsConn *nats.Conn
	gatewayConfig := gateway.DefaultConfig()
	if natsURL != "" {
		jsConfig := outbox.DefaultJetStreamConfig()
		jsConfig.URL = natsURL
		js, err := outbox.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.jetstream = js
		natsConn = js.Conn()

		gatewayConfig.UseJetStream = true
		gatewayConfig.JetStreamConfig.URL = natsURL
	}

	gatewayService, err := gateway.NewService(ctx, gatewayConfig, gateway.NewStoreResolver(store.sessions, store.players))
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	services.Gateway = gatewayService

	// Without NATS the worker feeds the hub directly.
	var publisher outbox.Publisher = outbox.NewHubPublisher(gatewayService.Hub())
	if services.jetstream != nil {
		publisher = services.jetstream
	}

	workerConfig := outbox.DefaultConfig()
	workerConfig.PollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 250*time.Millisecond)
	services.OutboxWorker = outbox.NewWorker(outboxApp, publisher, workerConfig, clk)

	services.Health = outbox.NewHealthChecker(services.OutboxWorker, store.pinger, outboxApp, natsConn, clk, time.Minute)

	return services, nil
}
