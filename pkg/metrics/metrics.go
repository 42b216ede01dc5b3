// Package metrics holds the Prometheus collectors for OTP traffic and HTTP
// requests. Collectors are registered on the Registerer passed to New so
// tests can use a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification outcomes
const (
	OutcomeVerified = "verified"
	OutcomeInvalid  = "invalid"
	OutcomeExpired  = "expired"
	OutcomeLocked   = "locked"
	OutcomeRace     = "race_lost"
)

type Metrics struct {
	OTPIssued      *prometheus.CounterVec
	OTPVerify      *prometheus.CounterVec
	OTPRateLimited *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OTPIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otp_issued_total",
				Help: "Total number of OTP codes issued",
			},
			[]string{"purpose"},
		),
		OTPVerify: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otp_verifications_total",
				Help: "OTP verification attempts by outcome",
			},
			[]string{"purpose", "outcome"},
		),
		OTPRateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otp_rate_limited_total",
				Help: "OTP requests refused by the rate limiter",
			},
			[]string{"purpose"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
		gatherer: gatherer,
	}
}

// NewDefault registers on the process-wide Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewNop returns collectors bound to a throwaway registry
func NewNop() *Metrics {
	reg := prometheus.NewRegistry()
	return New(reg, reg)
}

// Handler serves the exposition endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency keyed by the chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
