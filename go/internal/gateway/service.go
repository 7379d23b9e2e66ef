package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service bundles the websocket hub and, when NATS is configured, the
// JetStream consumer that feeds it.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
	// UseJetStream is false in single-process mode, where the outbox worker
	// publishes straight into the hub.
	UseJetStream bool
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

func NewService(ctx context.Context, config Config, resolver TokenResolver) (*Service, error) {
	cm := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, resolver),
	}

	if config.UseJetStream {
		ec, err := NewEventConsumer(ctx, cm, config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = ec
	}
	return s, nil
}

// Hub is where publishers deliver envelopes.
func (s *Service) Hub() *ConnectionManager {
	return s.connectionManager
}

// Start blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("jetstream", s.eventConsumer != nil).Msg("starting session gateway")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()
	return s.Stop()
}

func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("session gateway stopped")
	return nil
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("session gateway routes registered")
}

// NATSConnected reports the consumer connection state; true when no consumer
// is configured.
func (s *Service) NATSConnected() bool {
	if s.eventConsumer == nil {
		return true
	}
	return s.eventConsumer.Conn().IsConnected()
}
