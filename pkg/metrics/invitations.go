package metrics

import "github.com/prometheus/client_golang/prometheus"

// Timeout outcomes.
const (
	TimeoutOutcomeExpired = "expired"
	TimeoutOutcomeNoop    = "noop"
)

// InvitationMetrics tracks lifecycle transitions and timeout handling.
type InvitationMetrics struct {
	transitions *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// NewInvitationMetrics registers the invitation metrics on the provided registerer.
func NewInvitationMetrics(reg prometheus.Registerer) *InvitationMetrics {
	if reg == nil {
		return &InvitationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invitation_transitions_total",
		Help: "Persisted invitation status changes by resulting status.",
	}, []string{"status"})
	timeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invitation_timeouts_total",
		Help: "Fired invitation timeout jobs by outcome.",
	}, []string{"outcome"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invitation_events_published_total",
		Help: "Invitation events handed to the bus by result.",
	}, []string{"result"})
	reg.MustRegister(transitions, timeouts, published)
	return &InvitationMetrics{
		transitions: transitions,
		timeouts:    timeouts,
		published:   published,
	}
}

// IncTransition counts a persisted status change.
func (m *InvitationMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncTimeout counts a fired timeout job.
func (m *InvitationMetrics) IncTimeout(outcome string) {
	if m == nil || m.timeouts == nil {
		return
	}
	m.timeouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncPublish counts a bus publish attempt.
func (m *InvitationMetrics) IncPublish(ok bool) {
	if m == nil || m.published == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.published.WithLabelValues(result).Inc()
}

// GatewayMetrics tracks live subscription streams.
type GatewayMetrics struct {
	streams prometheus.Gauge
	dropped prometheus.Counter
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	streams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_streams",
		Help: "Open invitation event streams.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_undecodable_events_total",
		Help: "Bus payloads a stream could not decode.",
	})
	reg.MustRegister(streams, dropped)
	return &GatewayMetrics{streams: streams, dropped: dropped}
}

// StreamOpened increments the active stream gauge.
func (m *GatewayMetrics) StreamOpened() {
	if m == nil || m.streams == nil {
		return
	}
	m.streams.Inc()
}

// StreamClosed decrements the active stream gauge.
func (m *GatewayMetrics) StreamClosed() {
	if m == nil || m.streams == nil {
		return
	}
	m.streams.Dec()
}

// IncUndecodable counts a payload that failed to decode.
func (m *GatewayMetrics) IncUndecodable() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
