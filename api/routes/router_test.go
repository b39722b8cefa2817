package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/peerlink-backend/api/middleware"
	"github.com/angelmondragon/peerlink-backend/internal/bus"
	"github.com/angelmondragon/peerlink-backend/internal/gateway"
	"github.com/angelmondragon/peerlink-backend/internal/invitations"
	"github.com/angelmondragon/peerlink-backend/internal/repo/repotest"
	"github.com/angelmondragon/peerlink-backend/internal/rooms"
	"github.com/angelmondragon/peerlink-backend/internal/scheduler"
	"github.com/angelmondragon/peerlink-backend/internal/users"
	"github.com/angelmondragon/peerlink-backend/pkg/auth"
	"github.com/angelmondragon/peerlink-backend/pkg/config"
	"github.com/angelmondragon/peerlink-backend/pkg/db"
	"github.com/angelmondragon/peerlink-backend/pkg/db/models"
	"github.com/angelmondragon/peerlink-backend/pkg/enums"
	"github.com/angelmondragon/peerlink-backend/pkg/logger"
	"github.com/angelmondragon/peerlink-backend/pkg/metrics"
)

type testStack struct {
	server  *httptest.Server
	conn    *gorm.DB
	cfg     *config.Config
	memBus  *bus.MemoryBus
	sched   *scheduler.MemoryScheduler
	service invitations.Service
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "peerlink", ExpirationMinutes: 60},
		Invitation: config.InvitationConfig{
			Timeout: time.Hour,
		},
	}
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	conn := repotest.Open(t)
	client := db.FromConn(conn)

	memBus := bus.NewMemoryBus(16)
	sched := scheduler.NewMemoryScheduler(logg)
	t.Cleanup(func() {
		_ = sched.Close()
		_ = memBus.Close()
	})

	reg := prometheus.NewRegistry()
	userRepo := users.NewRepository(conn)
	svc, err := invitations.NewService(invitations.ServiceParams{
		DB:           client,
		Invitations:  invitations.NewRepository(conn),
		Users:        userRepo,
		Rooms:        rooms.NewRepository(conn),
		Scheduler:    sched,
		Publisher:    memBus,
		Logger:       logg,
		Metrics:      metrics.NewInvitationMetrics(reg),
		TimeoutDelay: cfg.Invitation.Timeout,
	})
	require.NoError(t, err)
	sched.SetHandler(svc.HandleTimeout)

	usersSvc, err := users.NewService(userRepo)
	require.NoError(t, err)

	gw, err := gateway.New(gateway.Params{Bus: memBus, Logger: logg, Metrics: metrics.NewGatewayMetrics(reg), Buffer: 8})
	require.NoError(t, err)
	stream := gateway.Handler(gw, gateway.StreamConfig{PingInterval: time.Second, PongWait: 2 * time.Second}, middleware.IdentifyRequest)

	router := NewRouter(cfg, logg, client, nil, usersSvc, svc, stream, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testStack{server: server, conn: conn, cfg: cfg, memBus: memBus, sched: sched, service: svc}
}

func (s *testStack) seedUser(t *testing.T, name string) uuid.UUID {
	t.Helper()
	user := &models.User{DisplayName: name}
	require.NoError(t, s.conn.Create(user).Error)
	return user.ID
}

func (s *testStack) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(s.cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)
	return token
}

func (s *testStack) do(t *testing.T, method, path string, userID uuid.UUID, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (s *testStack) dialStream(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/invitations/stream?access_token=" + s.token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) invitations.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event invitations.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func data(env map[string]any) map[string]any {
	d, _ := env["data"].(map[string]any)
	return d
}

func errorCode(env map[string]any) string {
	e, _ := env["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestInvitationFlowOverHTTP(t *testing.T) {
	stack := newTestStack(t)
	alice := stack.seedUser(t, "alice")
	bob := stack.seedUser(t, "bob")
	carol := stack.seedUser(t, "carol")

	aliceStream := stack.dialStream(t, alice)
	require.Eventually(t, func() bool {
		return stack.memBus.Subscribers(invitations.Topic) == 1
	}, time.Second, 10*time.Millisecond)

	status, env := stack.do(t, http.MethodPost, "/api/v1/invitations", alice, map[string]any{
		"receiver_id": bob.String(),
	})
	require.Equal(t, http.StatusCreated, status, env)
	inv := data(env)["invitation"].(map[string]any)
	invitationID := inv["id"].(string)
	assert.Equal(t, string(enums.InvitationStatusPending), inv["status"])
	assert.Equal(t, 1, stack.sched.Pending())

	created := readEvent(t, aliceStream)
	assert.Equal(t, enums.InvitationEventCreated, created.Kind)
	assert.Equal(t, invitationID, created.Invitation.ID.String())

	status, env = stack.do(t, http.MethodPost, "/api/v1/invitations", carol, map[string]any{
		"id":     invitationID,
		"status": "ACCEPTED",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(env))

	status, env = stack.do(t, http.MethodPost, "/api/v1/invitations", bob, map[string]any{
		"id":     invitationID,
		"status": "ACCEPTED",
	})
	require.Equal(t, http.StatusOK, status, env)
	room, ok := data(env)["room"].(map[string]any)
	require.True(t, ok, "accepted invitation must carry a room")
	assert.Equal(t, invitationID, room["invitation_id"])
	assert.Equal(t, 0, stack.sched.Pending())

	updated := readEvent(t, aliceStream)
	assert.Equal(t, enums.InvitationEventUpdated, updated.Kind)
	assert.Equal(t, enums.InvitationStatusAccepted, updated.Invitation.Status)
	require.NotNil(t, updated.Room)

	status, env = stack.do(t, http.MethodPost, "/api/v1/invitations", alice, map[string]any{
		"id":     invitationID,
		"status": "CANCELLED",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(env))

	status, env = stack.do(t, http.MethodGet, "/api/v1/invitations/"+invitationID, bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, data(env)["room"])

	status, env = stack.do(t, http.MethodGet, "/api/v1/invitations?status=accepted", alice, nil)
	require.Equal(t, http.StatusOK, status)
	items := data(env)["items"].([]any)
	assert.Len(t, items, 1)
}

func TestInvitationsRequireAuthentication(t *testing.T) {
	stack := newTestStack(t)

	status, env := stack.do(t, http.MethodGet, "/api/v1/invitations", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(env))

	url := "ws" + strings.TrimPrefix(stack.server.URL, "http") + "/api/v1/invitations/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeReturnsCurrentUser(t *testing.T) {
	stack := newTestStack(t)
	alice := stack.seedUser(t, "alice")

	status, env := stack.do(t, http.MethodGet, "/api/v1/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", data(env)["display_name"])

	status, _ = stack.do(t, http.MethodGet, "/api/v1/me", uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndMetrics(t *testing.T) {
	stack := newTestStack(t)

	status, env := stack.do(t, http.MethodGet, "/health/ready", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", data(env)["status"])

	resp, err := stack.server.Client().Get(stack.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
