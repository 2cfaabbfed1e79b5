package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheRequestsTotal counts cache lookups by outcome (hit | miss).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_cache_requests_total",
			Help: "Cache lookups partitioned by result.",
		},
		[]string{"result"},
	)

	// CacheEvictionsTotal counts entries removed to stay within capacity.
	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_cache_evictions_total",
			Help: "Entries evicted per tier to respect its capacity.",
		},
		[]string{"tier"},
	)

	// CacheExpirationsTotal counts entries dropped because they outlived the TTL.
	CacheExpirationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_cache_expirations_total",
			Help: "Entries removed per tier because they were older than the TTL.",
		},
		[]string{"tier"},
	)

	// CacheErrorsTotal counts durable tier failures absorbed by the store.
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apex_cache_errors_total",
			Help: "Durable tier failures absorbed by the cache store.",
		},
		[]string{"tier", "op"},
	)

	// UpstreamRequestSeconds observes Jolpica API latency.
	UpstreamRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apex_upstream_request_seconds",
			Help:    "Latency of upstream results API calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"resource", "outcome"},
	)

	// HTTPLatencySeconds observes dashboard HTTP latency.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apex_http_latency_seconds",
			Help:    "HTTP request latency for the dashboard in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheRequestsTotal,
		CacheEvictionsTotal,
		CacheExpirationsTotal,
		CacheErrorsTotal,
		UpstreamRequestSeconds,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency per route pattern so that path parameters
// (years, driver ids) do not blow up label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrade on /v1/events.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
