// Package metric holds the bridge's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tempest"

type Metrics struct {
	registry *prometheus.Registry

	records       *prometheus.CounterVec // by frame kind
	frames        *prometheus.CounterVec // by frame kind
	malformed     prometheus.Counter
	reconnects    prometheus.Counter
	ackMismatches prometheus.Counter
	sinkErrors    *prometheus.CounterVec // by sink
	state         prometheus.Gauge
	lastRecord    prometheus.Gauge
}

// New registers all instruments on a fresh registry, plus the Go and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "records_total",
			Help:      "Observation records emitted to the consumer",
		}, []string{"kind"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Frames decoded from the feed",
		}, []string{"kind"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "malformed_frames_total",
			Help:      "Frames that could not be decoded",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts",
		}),
		ackMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ack_mismatches_total",
			Help:      "Command replies that did not acknowledge the pending command",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Failed record publications",
		}, []string{"sink"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Session state (0 DISCONNECTED .. 7 CLOSED)",
		}),
		lastRecord: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "last_record_timestamp_seconds",
			Help:      "dateTime of the most recent record",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.records, m.frames, m.malformed, m.reconnects, m.ackMismatches,
		m.sinkErrors, m.state, m.lastRecord,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordEmitted(kind string, dateTime int64) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(kind).Inc()
	m.lastRecord.Set(float64(dateTime))
}

func (m *Metrics) FrameDecoded(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) AckMismatch() {
	if m == nil {
		return
	}
	m.ackMismatches.Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// SetState publishes the numeric session state.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
