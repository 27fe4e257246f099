package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	signups       *prometheus.CounterVec
	logins        *prometheus.CounterVec
	otpIssued     *prometheus.CounterVec
	otpVerified   *prometheus.CounterVec
	passwordReset *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_signups_total",
			Help: "Registration attempts by principal kind and outcome.",
		}, []string{"kind", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by principal kind and outcome.",
		}, []string{"kind", "outcome"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "One-time codes issued and dispatched, by principal kind.",
		}, []string{"kind"}),
		otpVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_verifications_total",
			Help: "One-time code verifications by principal kind and outcome.",
		}, []string{"kind", "outcome"}),
		passwordReset: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Password reset steps by stage and outcome.",
		}, []string{"stage", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.signups, m.logins, m.otpIssued, m.otpVerified, m.passwordReset,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Signup records a registration attempt. Nil receivers are no-ops.
func (m *Metrics) Signup(kind string, err error) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(kind, outcome(err)).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(kind string, err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(kind, outcome(err)).Inc()
}

// OTPIssued records a code that reached the mail dispatcher.
func (m *Metrics) OTPIssued(kind string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(kind).Inc()
}

// OTPVerified records a verification attempt.
func (m *Metrics) OTPVerified(kind string, err error) {
	if m == nil {
		return
	}
	m.otpVerified.WithLabelValues(kind, outcome(err)).Inc()
}

// PasswordReset records a reset request ("request") or confirmation ("confirm").
func (m *Metrics) PasswordReset(stage string, err error) {
	if m == nil {
		return
	}
	m.passwordReset.WithLabelValues(stage, outcome(err)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware measures every request. The route template is used as the path
// label to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			m.httpRequestsTotal.WithLabelValues(labels...).Inc()
			return err
		}
	}
}
