package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	AuthStatus      *prometheus.CounterVec
	StatusCache     *prometheus.CounterVec
	BackendLookup   *prometheus.HistogramVec
	CSRFOutcomes    *prometheus.CounterVec
	LoginThrottled  prometheus.Counter
	ActiveRequests  *prometheus.GaugeVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec
}

var _ service.Metrics = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		AuthStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionguard_auth_status_total",
				Help: "Total number of resolved request authentication statuses.",
			},
			[]string{"status"},
		),
		StatusCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionguard_status_cache_requests_total",
				Help: "Total number of backend status cache lookups by result.",
			},
			[]string{"result"},
		),
		BackendLookup: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionguard_backend_lookup_seconds",
				Help:    "Latency of backend session status lookups.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		CSRFOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionguard_csrf_outcomes_total",
				Help: "Total number of CSRF guard decisions by outcome.",
			},
			[]string{"outcome"},
		),
		LoginThrottled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionguard_login_throttled_total",
				Help: "Total number of login attempts rejected by the rate limiter.",
			},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessionguard_http_active_requests",
				Help: "Number of HTTP requests currently being served.",
			},
			[]string{"path", "method"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionguard_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method", "status"},
		),
		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionguard_http_request_errors_total",
				Help: "Total number of HTTP responses with a 4xx or 5xx status.",
			},
			[]string{"path", "method", "status"},
		),
	}
}

func (m *Metrics) RecordAuthStatus(status models.AuthStatus) {
	m.AuthStatus.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) RecordStatusCache(result string) {
	m.StatusCache.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBackendLookup(result string, duration time.Duration) {
	m.BackendLookup.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *Metrics) RecordCSRFOutcome(outcome string) {
	m.CSRFOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLoginThrottled() {
	m.LoginThrottled.Inc()
}

func (m *Metrics) ActiveRequestsInc(path, method string) {
	m.ActiveRequests.WithLabelValues(path, method).Inc()
}

func (m *Metrics) ActiveRequestsDec(path, method string) {
	m.ActiveRequests.WithLabelValues(path, method).Dec()
}

// ObserveRequest records the latency of a finished request and counts it as
// an error when status is 400 or above.
func (m *Metrics) ObserveRequest(path, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.RequestDuration.WithLabelValues(path, method, code).Observe(duration.Seconds())
	if status >= 400 {
		m.RequestErrors.WithLabelValues(path, method, code).Inc()
	}
}
