package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/escaperoom/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "SESSION_EVENTS",
		SubjectPrefix:   "session.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// ConnectNATS dials NATS with reconnect logging.
func ConnectNATS(url string, maxReconnects int, reconnectWait time.Duration, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := ConnectNATS(cfg.URL, cfg.MaxReconnects, cfg.ReconnectWait, "escaperoom-outbox")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Session event stream fed by the session outbox",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Subject returns the subject an event type is published on.
func (p *JetStreamPublisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, eventType)
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	subject := p.Subject(event.EventType)

	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{event.EventType},
			"Session-ID": []string{event.SessionID.String()},
			"Event-ID":   []string{event.ID.String()},
		},
	},
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID.String()).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")

	return nil
}

// Conn exposes the NATS connection for health checks.
func (p *JetStreamPublisher) Conn() *nats.Conn {
	return p.nc
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
