// Package bus fans invitation events out to subscribers, in process or across
// API instances.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/redis"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus closed")

// Bus publishes raw payloads on named topics.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// Subscription delivers the payloads published after it was opened. Events is
// closed once the subscription ends, either through Close or when the
// subscribe context is canceled.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}

// New builds the bus selected by cfg.BusDriver.
func New(cfg config.RealtimeConfig, redisClient *redis.Client, logg *logger.Logger) (Bus, error) {
	switch cfg.BusDriver {
	case config.BusDriverMemory, "":
		return NewMemoryBus(cfg.SendBuffer), nil
	case config.BusDriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client required for %s bus", config.BusDriverRedis)
		}
		return NewRedisBus(redisClient, cfg.SendBuffer, logg), nil
	case config.BusDriverNATS:
		return NewNATSBus(cfg.NATSURL, cfg.SendBuffer, logg)
	default:
		return nil, fmt.Errorf("unsupported bus driver %q", cfg.BusDriver)
	}
}
