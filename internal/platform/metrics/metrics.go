package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the recorder dashboard.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  prometheus.Counter
	errorsTotal    prometheus.Counter
	duration       *prometheus.HistogramVec
	refreshTotal   *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	rooms          *prometheus.GaugeVec
	servers        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the dashboard.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recdash_requests_total",
		Help: "Total number of local API requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recdash_errors_total",
		Help: "Total number of local API responses with error status (4xx or 5xx)",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recdash_request_duration_seconds",
		Help:    "Local API request latency by route pattern",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10},
	}, []string{"route"})
	refreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recdash_refresh_total",
		Help: "Store refresh attempts by store and result (ok, error, throttled)",
	}, []string{"store", "result"})
	upstreamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recdash_upstream_errors_total",
		Help: "Failed calls to the recorder aggregator API by error kind",
	}, []string{"kind"})
	rooms := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recdash_rooms",
		Help: "Rooms in the current snapshot by state (total, streaming, recording)",
	}, []string{"state"})
	servers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recdash_servers",
		Help: "Recorder servers in the current registry snapshot",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		duration,
		refreshTotal,
		upstreamErrors,
		rooms,
		servers,
	)

	return &Metrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		errorsTotal:    errorsTotal,
		duration:       duration,
		refreshTotal:   refreshTotal,
		upstreamErrors: upstreamErrors,
		rooms:          rooms,
		servers:        servers,
	}
}

// ObserveRequest records one local API request. Statuses of 400 and above
// count as errors.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requestsTotal.Inc()
	if status >= http.StatusBadRequest {
		m.errorsTotal.Inc()
	}
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRefresh counts one refresh attempt of store with the given result.
func (m *Metrics) ObserveRefresh(store, result string) {
	m.refreshTotal.WithLabelValues(store, result).Inc()
}

// IncUpstreamError counts a failed upstream call classified as kind.
func (m *Metrics) IncUpstreamError(kind string) {
	m.upstreamErrors.WithLabelValues(kind).Inc()
}

// SetRoomCounts sets the room gauges.
func (m *Metrics) SetRoomCounts(total, streaming, recording int) {
	m.rooms.WithLabelValues("total").Set(float64(total))
	m.rooms.WithLabelValues("streaming").Set(float64(streaming))
	m.rooms.WithLabelValues("recording").Set(float64(recording))
}

// SetServers sets the server registry gauge.
func (m *Metrics) SetServers(n int) {
	m.servers.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. room counts).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
