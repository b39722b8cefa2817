package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "peerlink."

// NATSBus fans out over core NATS subjects. Like the redis driver it is at most
// once.
type NATSBus struct {
	conn   *nats.Conn
	buffer int
	logg   *logger.Logger
}

// NewNATSBus connects to url.
func NewNATSBus(url string, buffer int, logg *logger.Logger, opts ...nats.Option) (*NATSBus, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url required")
	}
	opts = append([]nats.Option{nats.Name("peerlink-bus")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSBus{conn: nc, buffer: buffer, logg: logg}, nil
}

// Subject maps a topic to its NATS subject.
func Subject(topic string) string {
	return subjectPrefix + topic
}

// Publish sends payload on the topic subject.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(Subject(topic), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers an async subscription on the topic subject.
func (b *NATSBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	var natsSub *nats.Subscription
	sub := newChannelSub(b.buffer, func() {
		if natsSub != nil {
			_ = natsSub.Unsubscribe()
		}
	})
	natsSub, err := b.conn.Subscribe(Subject(topic), func(msg *nats.Msg) {
		if !sub.deliver(ctx, msg.Data) && b.logg != nil && ctx.Err() == nil {
			b.logg.Debug(ctx, "nats message dropped for closed subscription")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	sub.closeOnDone(ctx)
	return sub, nil
}

// Close drains the connection, falling back to a hard close.
func (b *NATSBus) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
