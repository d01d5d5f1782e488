// Package nats publishes turn events to a NATS JetStream subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/papercomputeco/ragchat/pkg/eventstream"
)

type Config struct {
	URL     string
	Subject string
	Logger  *slog.Logger
}

// Publisher publishes events to a JetStream stream that captures Subject.
// Event IDs are used as message IDs so redelivered publishes deduplicate.
type Publisher struct {
	nc      *natsgo.Conn
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

func NewPublisher(ctx context.Context, c Config) (*Publisher, error) {
	if c.URL == "" {
		c.URL = natsgo.DefaultURL
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	nc, err := natsgo.Connect(c.URL,
		natsgo.Name("ragchat"),
		natsgo.MaxReconnects(5),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName(c.Subject),
		Subjects:  []string{c.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring stream for %s: %w", c.Subject, err)
	}

	return &Publisher{nc: nc, js: js, subject: c.Subject, logger: c.Logger}, nil
}

// StreamName derives the JetStream stream name for a subject.
func StreamName(subject string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_")
	return strings.ToUpper(r.Replace(subject))
}

func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling turn event: %w", err)
	}

	if _, err := p.js.Publish(ctx, p.subject, data, jetstream.WithMsgID(event.EventID)); err != nil {
		return fmt.Errorf("publishing turn event to %s: %w", p.subject, err)
	}

	p.logger.Debug("published turn event", "subject", p.subject, "thread_id", event.ThreadID, "event_id", event.EventID)
	return nil
}

func (p *Publisher) Close() error {
	return p.nc.Drain()
}

var _ eventstream.Publisher = (*Publisher)(nil)
