package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxInboundMessage = 4096

// StreamConfig tunes websocket keepalives.
type StreamConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// StreamConfigFrom maps the realtime settings onto a StreamConfig.
func StreamConfigFrom(cfg config.RealtimeConfig) StreamConfig {
	return StreamConfig{
		PingInterval: cfg.PingInterval,
		PongWait:     cfg.PongWait,
		WriteWait:    cfg.WriteWait,
	}
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

// Identify resolves the authenticated user of a request.
type Identify func(r *http.Request) (uuid.UUID, bool)

type stream struct {
	conn   *websocket.Conn
	events <-chan invitations.Event
	cfg    StreamConfig
	logg   *logger.Logger
}

// Handler upgrades the request to a websocket and writes every event of the
// caller's invitations as a JSON text frame. Inbound frames are ignored.
func Handler(g *Gateway, cfg StreamConfig, identify Identify) http.HandlerFunc {
	cfg = cfg.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     cfg.CheckOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identify(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events, err := g.Subscribe(ctx, userID)
		if err != nil {
			g.logg.Error(ctx, "failed to open invitation stream", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "websocket upgrade failed")
			return
		}

		ctx = g.logg.WithUserID(ctx, userID.String())
		g.metrics.StreamOpened()
		defer g.metrics.StreamClosed()
		g.logg.Info(ctx, "invitation stream opened")

		s := &stream{conn: conn, events: events, cfg: cfg, logg: g.logg}
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.writePump(ctx, cancel)
		}()
		s.readPump(ctx, cancel)
		<-done
		g.logg.Info(ctx, "invitation stream closed")
	}
}

func (s *stream) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	s.conn.SetReadLimit(maxInboundMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logg.Debug(s.logg.WithField(ctx, "error", err.Error()), "invitation stream read ended unexpectedly")
			}
			return
		}
	}
}

func (s *stream) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseNormalClosure)
			return
		case event, ok := <-s.events:
			if !ok {
				s.writeClose(websocket.CloseGoingAway)
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logg.Error(ctx, "failed to encode invitation event", err)
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logg.Debug(ctx, "invitation stream write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logg.Debug(ctx, "invitation stream ping failed")
				return
			}
		}
	}
}

func (s *stream) writeClose(code int) {
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(s.cfg.WriteWait),
	)
}
