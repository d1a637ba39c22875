package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus recorder
type Config struct {
	// Namespace is the metrics namespace (default: "opsauth").
	Namespace string

	// Buckets are the histogram buckets for token verification latency.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Recorder exports authentication metrics to Prometheus
type Recorder struct {
	loginsTotal        *prometheus.CounterVec
	validationsTotal   *prometheus.CounterVec
	cleanupsTotal      *prometheus.CounterVec
	verifyDuration     *prometheus.HistogramVec
	backendHealthy     prometheus.Gauge
	backendChecksTotal *prometheus.CounterVec
}

// NewRecorder registers the authentication metrics:
//   - opsauth_logins_total{outcome}
//   - opsauth_session_validations_total{outcome}
//   - opsauth_identity_cleanups_total{result}
//   - opsauth_token_verify_duration_seconds{kind}
//   - opsauth_backend_healthy
//   - opsauth_backend_checks_total{result}
func NewRecorder(cfg Config) *Recorder {
	if cfg.Namespace == "" {
		cfg.Namespace = "opsauth"
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &Recorder{
		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts by outcome",
		}, []string{"outcome"}),

		validationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "session_validations_total",
			Help:      "Total number of session validations by outcome",
		}, []string{"outcome"}),

		cleanupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "identity_cleanups_total",
			Help:      "Total number of identity deletions after policy rejection",
		}, []string{"result"}),

		verifyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "token_verify_duration_seconds",
			Help:      "Identity token verification duration in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"kind"}),

		backendHealthy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "backend_healthy",
			Help:      "Whether the last backend health check succeeded (1) or not (0)",
		}),

		backendChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "backend_checks_total",
			Help:      "Total number of backend health checks by result",
		}, []string{"result"}),
	}
}

// LoginOutcome counts a login by its result code ("success" when empty)
func (r *Recorder) LoginOutcome(code string) {
	r.loginsTotal.WithLabelValues(code).Inc()
}

// SessionValidation counts a session validation by its result code
func (r *Recorder) SessionValidation(code string) {
	r.validationsTotal.WithLabelValues(code).Inc()
}

// Cleanup counts an identity deletion attempt
func (r *Recorder) Cleanup(deleted bool) {
	r.cleanupsTotal.WithLabelValues(result(deleted)).Inc()
}

// ObserveVerify records a token verification and its outcome kind
func (r *Recorder) ObserveVerify(kind string, d time.Duration) {
	r.verifyDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// BackendHealth records the result of a backend health check
func (r *Recorder) BackendHealth(healthy bool) {
	if healthy {
		r.backendHealthy.Set(1)
	} else {
		r.backendHealthy.Set(0)
	}
	r.backendChecksTotal.WithLabelValues(result(healthy)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
