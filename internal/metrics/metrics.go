// Package metrics provides Prometheus instrumentation for the simulation
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by type (buy/sell).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradingschool_trades_total",
		Help: "Total number of simulated trades executed",
	}, []string{"type"})

	// RejectionsTotal counts rejected actions by rejection reason.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradingschool_rejections_total",
		Help: "Actions rejected by the session engine",
	}, []string{"reason"})

	// SessionsStarted counts new simulation sessions.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradingschool_sessions_started_total",
		Help: "Total simulation sessions started",
	})

	// SessionsEnded counts terminated sessions by cause.
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradingschool_sessions_ended_total",
		Help: "Total simulation sessions ended",
	}, []string{"cause"})

	// WeeksAdvanced counts simulated week transitions.
	WeeksAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradingschool_weeks_advanced_total",
		Help: "Total simulated weeks advanced across all sessions",
	})

	// LevelUps counts level advancements.
	LevelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradingschool_level_ups_total",
		Help: "Total level advancements",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradingschool_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradingschool_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradingschool_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
