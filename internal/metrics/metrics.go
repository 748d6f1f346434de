package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagestudio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imagestudio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "path"},
	)

	// Generations counts finished pipeline runs by operation kind and outcome.
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagestudio",
			Subsystem: "pipeline",
			Name:      "generations_total",
			Help:      "Total number of generation pipeline runs.",
		},
		[]string{"kind", "status"},
	)

	// CreditReservations counts reservation attempts by result.
	CreditReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagestudio",
			Subsystem: "credits",
			Name:      "reservations_total",
			Help:      "Total number of credit reservation attempts.",
		},
		[]string{"result"},
	)

	// PollAttempts observes how many status polls a job needed.
	PollAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imagestudio",
			Subsystem: "pipeline",
			Name:      "poll_attempts",
			Help:      "Status poll attempts per inference job.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// NotificationFailures counts completion emails that could not be sent.
	NotificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imagestudio",
			Subsystem: "pipeline",
			Name:      "notification_failures_total",
			Help:      "Completion emails that failed to send.",
		},
	)

	// SweepOrphansRemoved counts objects removed by the reconciliation sweep.
	SweepOrphansRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imagestudio",
			Subsystem: "sweeper",
			Name:      "orphans_removed_total",
			Help:      "Orphaned storage objects removed by the sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		Generations,
		CreditReservations,
		PollAttempts,
		NotificationFailures,
		SweepOrphansRemoved,
	)
}

// Handler serves the /metrics endpoint for the application registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per chi route pattern.
// The pattern is only known once routing has run, so labels are resolved
// after the handler returns. Patterns keep the label set bounded; raw
// asset paths would mint a series per storage key.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := routeLabel(r)
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
