// Package eventstreamutils builds an eventstream.Publisher from configuration.
package eventstreamutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/ragchat/pkg/eventstream"
	"github.com/papercomputeco/ragchat/pkg/eventstream/kafka"
	"github.com/papercomputeco/ragchat/pkg/eventstream/nats"
	"github.com/papercomputeco/ragchat/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType is one of "none", "kafka" or "nats".
	ProviderType string
	Target       string
	Topic        string
	Logger       *slog.Logger
}

func NewPublisher(ctx context.Context, o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{Brokers: o.Target, Topic: o.Topic, Logger: o.Logger})
	case "nats":
		return nats.NewPublisher(ctx, nats.Config{URL: o.Target, Subject: o.Topic, Logger: o.Logger})
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", o.ProviderType)
	}
}
