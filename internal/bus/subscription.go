package bus

import (
	"context"
	"sync"
)

// channelSub is the delivery half shared by every driver. Senders hold mu
// while delivering so Close never closes events under a pending send.
type channelSub struct {
	events chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once

	onClose func()
}

func newChannelSub(buffer int, onClose func()) *channelSub {
	if buffer < 0 {
		buffer = 0
	}
	return &channelSub{
		events:  make(chan []byte, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (s *channelSub) Events() <-chan []byte {
	return s.events
}

// deliver blocks until the payload is queued, the subscription closes or ctx
// is done. It reports whether the payload was queued.
func (s *channelSub) deliver(ctx context.Context, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- payload:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *channelSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
	return nil
}

// closeOnDone ends the subscription when ctx is canceled.
func (s *channelSub) closeOnDone(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
}
