package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/mcdev12/escaperoom/go/internal/outbox"
)

type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "SESSION_EVENTS",
		ConsumerName:  "session-gateway",
		SubjectFilter: "session.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer reads session events from JetStream and hands them to the hub.
type EventConsumer struct {
	hub      outbox.Broadcaster
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
}

func NewEventConsumer(ctx context.Context, hub outbox.Broadcaster, config JetStreamConsumerConfig) (*EventConsumer, error) {
	nc, err := outbox.ConnectNATS(config.URL, config.MaxReconnects, config.ReconnectWait, "escaperoom-gateway")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		hub:    hub,
		nc:     nc,
		js:     js,
		config: config,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	// Hints only matter while they are fresh, so a new consumer starts at the tail.
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Session gateway WebSocket consumer",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("JetStream consumer ready")

	ec.consumer = consumer
	return nil
}

func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.processMessage(msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				// a malformed envelope will never parse; drop it instead of redelivering
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to TERM message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (ec *EventConsumer) processMessage(msg jetstream.Msg) error {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Data(), &envelope); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if envelope.SessionID == "" {
		return fmt.Errorf("event %s has no session id", envelope.EventID)
	}

	ec.hub.Broadcast(envelope.SessionID, envelope)

	log.Debug().
		Str("event_id", envelope.EventID).
		Str("session_id", envelope.SessionID).
		Str("event_type", envelope.EventType).
		Msg("event handed to websocket hub")
	return nil
}

func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}

// Conn exposes the NATS connection for health checks.
func (ec *EventConsumer) Conn() *nats.Conn {
	return ec.nc
}
