// Package metrics holds the Prometheus collectors for bonddesk. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Metrics is the bonddesk collector set, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SyncBatches        *prometheus.CounterVec
	SyncCycles         prometheus.Counter
	Quotes             *prometheus.CounterVec
	WSClients          prometheus.Gauge
	UpstreamRequests   *prometheus.CounterVec
	UpstreamLatency    *prometheus.HistogramVec
	OrderBookFallbacks prometheus.Counter
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SyncBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonddesk_sync_batches_total",
				Help: "Quote sync batches by result",
			},
			[]string{"result"},
		),

		SyncCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bonddesk_sync_cycles_total",
				Help: "Completed quote sync cycles",
			},
		),

		Quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonddesk_quotes_total",
				Help: "Quotes served or synced by status",
			},
			[]string{"status"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bonddesk_ws_clients",
				Help: "Connected quote stream clients",
			},
		),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonddesk_upstream_requests_total",
				Help: "Upstream API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bonddesk_upstream_request_seconds",
				Help:    "Upstream API request latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),

		OrderBookFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bonddesk_order_book_fallbacks_total",
				Help: "Order book requests answered with an empty book after an upstream failure",
			},
		),
	}

	m.registry.MustRegister(
		m.SyncBatches,
		m.SyncCycles,
		m.Quotes,
		m.WSClients,
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.OrderBookFallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SyncBatch(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.SyncBatches.WithLabelValues(result).Inc()
}

func (m *Metrics) SyncCycle() {
	if m == nil {
		return
	}
	m.SyncCycles.Inc()
}

func (m *Metrics) Quote(status domain.QuoteStatus) {
	if m == nil {
		return
	}
	m.Quotes.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

func (m *Metrics) OrderBookFallback() {
	if m == nil {
		return
	}
	m.OrderBookFallbacks.Inc()
}

// ObserveUpstream records one upstream request. Its signature matches the
// upstream client's observer hook.
func (m *Metrics) ObserveUpstream(endpoint string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	m.UpstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
