package bus

import (
	"context"
	"fmt"

	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
)

type pubsubStore interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
	BusChannel(topic string) string
}

// RedisBus fans out through redis pub/sub so every API instance sees every
// event. Delivery is at most once; subscribers offline at publish time miss it.
type RedisBus struct {
	store  pubsubStore
	buffer int
	logg   *logger.Logger
}

// NewRedisBus builds the redis driver.
func NewRedisBus(store pubsubStore, buffer int, logg *logger.Logger) *RedisBus {
	return &RedisBus{store: store, buffer: buffer, logg: logg}
}

// Publish sends payload on the topic channel.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.store.Publish(ctx, b.store.BusChannel(topic), payload); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a dedicated pub/sub connection for topic.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	channel := b.store.BusChannel(topic)
	ps := b.store.Subscribe(ctx, channel)
	if ps == nil {
		return nil, fmt.Errorf("redis subscribe %s: no connection", topic)
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	sub := newChannelSub(b.buffer, func() { _ = ps.Close() })
	go b.pump(ctx, ps, sub)
	sub.closeOnDone(ctx)
	return sub, nil
}

func (b *RedisBus) pump(ctx context.Context, ps *goredis.PubSub, sub *channelSub) {
	defer sub.Close()
	for msg := range ps.Channel() {
		if !sub.deliver(ctx, []byte(msg.Payload)) {
			return
		}
	}
	if b.logg != nil && ctx.Err() == nil {
		b.logg.Warn(ctx, "redis bus subscription ended")
	}
}

// Close is a no-op; the shared redis client is closed by its owner.
func (b *RedisBus) Close() error {
	return nil
}
