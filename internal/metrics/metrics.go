// Package metrics exposes Prometheus collectors for the HTTP API and reminders.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lender",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lender",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lender",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	reminders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lender",
			Subsystem: "reminders",
			Name:      "total",
			Help:      "Reminder emails by outcome (sent, failed, limited).",
		},
		[]string{"outcome"},
	)
)

// Reminder outcomes.
const (
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
	ReminderLimited = "limited"
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		reminders,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordReminder counts a reminder attempt.
func RecordReminder(outcome string) {
	reminders.WithLabelValues(outcome).Inc()
}

// Instrument wraps next with request counting and timing.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		method, path := MethodLabel(r.Method), RouteLabel(r.URL.Path)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// OtherLabel buckets paths and methods that match no known route.
const OtherLabel = "other"

var routes = map[string]bool{
	"/api/csrf-cookie":       true,
	"/api/auth/register":     true,
	"/api/auth/login":        true,
	"/api/auth/logout":       true,
	"/api/auth/me":           true,
	"/api/items":             true,
	"/api/items/{id}":        true,
	"/api/items/{id}/notify": true,
	"/api/items/{id}/photo":  true,
	"/healthz":               true,
}

var methods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// RouteLabel maps a request path onto its route template. Any segment after
// /api/items/ is an item id, valid or not. Paths outside the known routes
// share OtherLabel.
func RouteLabel(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 3 && parts[1] == "api" && parts[2] == "items" && parts[3] != "" {
		parts[3] = "{id}"
	}
	label := strings.Join(parts, "/")
	if !routes[label] {
		return OtherLabel
	}
	return label
}

// MethodLabel returns method for standard HTTP methods and OtherLabel for
// anything else.
func MethodLabel(method string) string {
	if !methods[method] {
		return OtherLabel
	}
	return method
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
