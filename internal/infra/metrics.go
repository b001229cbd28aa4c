package infra

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts stream and dispatch activity with atomics.
// Collectors exposes the same counters to Prometheus.
type Metrics struct {
	// Counters
	framesReceived    atomic.Uint64
	malformedFrames   atomic.Uint64
	reconnectAttempts atomic.Uint64
	eventsDispatched  atomic.Uint64
	requestErrors     atomic.Uint64

	// Latency tracking (inbox wait + apply)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordFrame records one received stream frame.
func (m *Metrics) RecordFrame() {
	m.framesReceived.Add(1)
}

// RecordMalformed records a frame that failed to decode.
func (m *Metrics) RecordMalformed() {
	m.malformedFrames.Add(1)
}

// RecordReconnect records a scheduled reconnect.
func (m *Metrics) RecordReconnect() {
	m.reconnectAttempts.Add(1)
}

// RecordEvent records a dispatched event with latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsDispatched.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRequestError records a failed REST call.
func (m *Metrics) RecordRequestError() {
	m.requestErrors.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	FramesReceived    uint64
	MalformedFrames   uint64
	ReconnectAttempts uint64
	EventsDispatched  uint64
	RequestErrors     uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		FramesReceived:    m.framesReceived.Load(),
		MalformedFrames:   m.malformedFrames.Load(),
		ReconnectAttempts: m.reconnectAttempts.Load(),
		EventsDispatched:  m.eventsDispatched.Load(),
		RequestErrors:     m.requestErrors.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.framesReceived.Store(0)
	m.malformedFrames.Store(0)
	m.reconnectAttempts.Store(0)
	m.eventsDispatched.Store(0)
	m.requestErrors.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}

// Collectors returns Prometheus collectors reading the atomic counters.
func (m *Metrics) Collectors() []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "dash",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}

	return []prometheus.Collector{
		counter("stream_frames_total", "Stream frames received", &m.framesReceived),
		counter("stream_malformed_frames_total", "Stream frames that failed to decode", &m.malformedFrames),
		counter("stream_reconnects_total", "Scheduled stream reconnects", &m.reconnectAttempts),
		counter("events_dispatched_total", "Events applied by the dispatcher", &m.eventsDispatched),
		counter("request_errors_total", "Failed venue REST calls", &m.requestErrors),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dash",
			Name:      "stream_active_connections",
			Help:      "Open stream connections",
		}, func() float64 { return float64(m.activeConnections.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dash",
			Name:      "event_avg_latency_seconds",
			Help:      "Average time from event creation to applied state",
		}, func() float64 { return time.Duration(m.Snapshot().AvgLatencyNs).Seconds() }),
	}
}

// MetricsHandler registers the collectors on a fresh registry and serves it.
func MetricsHandler(m *Metrics) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
