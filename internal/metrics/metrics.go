// Package metrics exposes Prometheus collectors for the push channel and
// the notification store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the notifier's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesReceived      *prometheus.CounterVec
	decodeErrors        prometheus.Counter
	reconnectsScheduled prometheus.Counter
	connectionState     prometheus.Gauge
	unread              prometheus.Gauge
	fetchDuration       *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		framesReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_frames_received_total",
				Help: "Push frames received, by frame type",
			},
			[]string{"type"},
		),
		decodeErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "notifier_frame_decode_errors_total",
				Help: "Push frames dropped because they could not be decoded",
			},
		),
		reconnectsScheduled: f.NewCounter(
			prometheus.CounterOpts{
				Name: "notifier_reconnects_scheduled_total",
				Help: "Reconnection timers armed after an abnormal close",
			},
		),
		connectionState: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifier_connection_state",
				Help: "Push connection state (0 closed, 1 connecting, 2 open)",
			},
		),
		unread: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifier_unread_notifications",
				Help: "Unread counter as tracked by the client",
			},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notifier_fetch_duration_seconds",
				Help:    "Duration of bulk fetch and reconcile round-trips",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"operation", "status"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(frameType).Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnectsScheduled.Inc()
}

// SetConnectionState records the channel state as its ordinal.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

func (m *Metrics) SetUnread(n int) {
	if m == nil {
		return
	}
	m.unread.Set(float64(n))
}

// ObserveFetch records how long a fetch took and whether it failed.
func (m *Metrics) ObserveFetch(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetchDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
