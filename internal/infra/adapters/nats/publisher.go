package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
)

// Envelope is the wire shape of a published notification.
type Envelope struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	NotificationID int64          `json:"notification_id"`
	UserID         int64          `json:"user_id"`
	Kind           string         `json:"kind"`
	Message        string         `json:"message"`
	Link           string         `json:"link,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// streamPublisher is the subset of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher relays outbox notifications to a JetStream stream.
type Publisher struct {
	conn   *nats.Conn
	js     streamPublisher
	prefix string
	log    zerolog.Logger
}

var _ adapter.NotificationPublisher = (*Publisher)(nil)

// Connect dials NATS, ensures the notification stream exists and returns a
// ready publisher.
func Connect(ctx context.Context, cfg config.NATSConfig, logger *zerolog.Logger) (*Publisher, error) {
	log := logger.With().Str("component", "NATSPublisher").Logger()

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		MaxAge:    7 * 24 * time.Hour,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		// Duplicate window backs the Nats-Msg-Id dedupe of relay retries.
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	log.Info().Str("url", conn.ConnectedUrl()).Str("stream", cfg.Stream).Msg("nats publisher ready")
	return &Publisher{conn: conn, js: js, prefix: cfg.SubjectPrefix, log: log}, nil
}

func newPublisher(js streamPublisher, prefix string, logger *zerolog.Logger) *Publisher {
	return &Publisher{js: js, prefix: prefix, log: logger.With().Str("component", "NATSPublisher").Logger()}
}

// Subject returns the subject a notification is published on.
func (p *Publisher) Subject(n *model.Notification) string {
	kind := n.EventType
	if kind == "" {
		kind = string(n.Type)
	}
	return p.prefix + "." + kind
}

// Publish sends n once per notification id; JetStream drops redeliveries of
// the same id within the duplicate window.
func (p *Publisher) Publish(ctx context.Context, n *model.Notification) error {
	env := Envelope{
		ID:             ulid.Make().String(),
		Type:           n.EventType,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Kind:           string(n.Type),
		Message:        n.Message,
		Link:           n.Link,
		Payload:        n.Payload,
		OccurredAt:     n.CreatedAt,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal notification %d: %w", n.ID, err)
	}

	subject := p.Subject(n)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID("notification-"+strconv.FormatInt(n.ID, 10)))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.Debug().
		Int64("notification_id", n.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("notification published")
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// LogPublisher is used when no broker is configured: notifications are
// marked published after being logged.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.With().Str("component", "LogPublisher").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, n *model.Notification) error {
	p.log.Info().
		Int64("notification_id", n.ID).
		Int64("user_id", n.UserID).
		Str("event", n.EventType).
		Msg("notification (no broker)")
	return nil
}
