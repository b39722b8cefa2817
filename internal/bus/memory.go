package bus

import (
	"context"
	"sync"
)

// MemoryBus delivers within a single process.
type MemoryBus struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[*channelSub]struct{}
	closed bool
}

// NewMemoryBus builds an in-process bus whose subscriptions buffer up to
// buffer payloads.
func NewMemoryBus(buffer int) *MemoryBus {
	return &MemoryBus{
		buffer: buffer,
		subs:   make(map[string]map[*channelSub]struct{}),
	}
}

// Publish delivers payload to every current subscriber of topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*channelSub, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(ctx, payload)
	}
	return ctx.Err()
}

// Subscribe registers a subscriber on topic until Close or ctx cancel.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	var sub *channelSub
	sub = newChannelSub(b.buffer, func() { b.remove(topic, sub) })
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*channelSub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	sub.closeOnDone(ctx)
	return sub, nil
}

// Subscribers returns the number of live subscribers on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*channelSub
	for _, subs := range b.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

func (b *MemoryBus) remove(topic string, sub *channelSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], sub)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}
