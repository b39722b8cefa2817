// Package gateway streams invitation events to the two participants of each
// invitation.
package gateway

import (
	"context"
	"fmt"

	"github.com/angelmondragon/peerlink-backend/internal/bus"
	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	pkgerrors "github.com/angelmondragon/peerlink-backend/pkg/errors"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Params groups the gateway dependencies.
type Params struct {
	Bus     bus.Bus
	Logger  *logger.Logger
	Metrics *metrics.GatewayMetrics
	Buffer  int
}

// Gateway filters the shared invitation topic down to one user's events.
type Gateway struct {
	bus     bus.Bus
	logg    *logger.Logger
	metrics *metrics.GatewayMetrics
	buffer  int
}

// New builds a gateway.
func New(params Params) (*Gateway, error) {
	if params.Bus == nil {
		return nil, fmt.Errorf("bus required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Buffer <= 0 {
		params.Buffer = 1
	}
	return &Gateway{
		bus:     params.Bus,
		logg:    params.Logger,
		metrics: params.Metrics,
		buffer:  params.Buffer,
	}, nil
}

// participantFilter keeps the events userID sends or receives.
func participantFilter(userID uuid.UUID) func(invitations.Event) bool {
	return func(e invitations.Event) bool {
		return e.Involves(userID)
	}
}

// Subscribe streams the events of invitations userID participates in. The
// channel closes when ctx is canceled, when the bus subscription ends, or when
// the consumer falls a full buffer behind.
func (g *Gateway) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan invitations.Event, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id missing")
	}
	sub, err := g.bus.Subscribe(ctx, invitations.Topic)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to invitation events")
	}

	ctx = g.logg.WithUserID(ctx, userID.String())
	keep := participantFilter(userID)
	out := make(chan invitations.Event, g.buffer)

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Events():
				if !ok {
					return
				}
				event, err := invitations.DecodeEvent(payload)
				if err != nil {
					g.metrics.IncUndecodable()
					g.logg.Debug(ctx, "dropping undecodable invitation event")
					continue
				}
				if !keep(event) {
					continue
				}
				select {
				case out <- event:
				default:
					g.logg.Warn(ctx, "invitation stream consumer too slow, closing")
					return
				}
			}
		}
	}()
	return out, nil
}
