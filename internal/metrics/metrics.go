package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

type Logger interface {
	Debugf(string, ...any)
	Infof(string, ...any)
}

// RequestsCounterMetric counts requests by method, route pattern and status.
func RequestsCounterMetric(namespace string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
}

// RequestsLatencyMetric buckets are in seconds.
func RequestsLatencyMetric(namespace string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "requests_latency_seconds",
			Help:      "Histogram of time to reply to request.",
			Buckets:   []float64{.001, .005, .01, .02, .04, .08, .16, .32, .64},
		},
		[]string{"method", "route"},
	)
}

// Metrics owns its own registry, so the Go and process collectors are not
// exported.
type Metrics struct {
	serviceName     string
	registry        *prometheus.Registry
	requestsCounter *prometheus.CounterVec
	requestsLatency *prometheus.HistogramVec
	log             Logger
}

func New(log Logger, serviceName string) *Metrics {
	name := strings.ToLower(serviceName)
	m := &Metrics{
		log:             log,
		serviceName:     name,
		registry:        prometheus.NewRegistry(),
		requestsCounter: RequestsCounterMetric(name),
		requestsLatency: RequestsLatencyMetric(name),
	}
	m.Register(m.requestsCounter, m.requestsLatency)
	log.Debugf("metrics registry for %s ready", name)
	return m
}

func (m *Metrics) String() string {
	return m.serviceName
}

func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

// NewPromHandler serves the registry. The default InstrumentMetricHandler is
// suppressed.
func (m *Metrics) NewPromHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware observes every request under its chi route pattern, so ids in
// the path do not explode the label space. A nil Metrics observes nothing.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requestsCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestsLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
