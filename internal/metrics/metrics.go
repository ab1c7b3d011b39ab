package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/proflinker/api/internal/generation"
)

const namespace = "proflinker"

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
	generationRuns    *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	emails            *prometheus.CounterVec
	favoritesSaved    *prometheus.CounterVec
	circuitState      *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		generationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_runs_total",
			Help:      "Settled generation runs by kind, status and error kind.",
		}, []string{"kind", "status", "error_kind", "applied"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation run latency by kind.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45},
		}, []string{"kind"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Email operations by operation and result.",
		}, []string{"operation", "result"}),
		favoritesSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorites_persisted_total",
			Help:      "Favorite writes on completion by result.",
		}, []string{"result"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.generationRuns,
		m.generationLatency,
		m.emails,
		m.favoritesSaved,
		m.circuitState,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveGeneration records a settled controller run
func (m *Metrics) ObserveGeneration(r generation.Report) {
	kind := string(r.Request.Kind)
	m.generationRuns.WithLabelValues(kind, string(r.Status), generation.Kind(r.Err), strconv.FormatBool(r.Applied)).Inc()
	m.generationLatency.WithLabelValues(kind).Observe(r.Latency.Seconds())
}

// ObserveEmail records an email generation or send
func (m *Metrics) ObserveEmail(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.emails.WithLabelValues(operation, result).Inc()
}

// ObserveFavorites records the outcome of a completion
func (m *Metrics) ObserveFavorites(saved, failed int) {
	m.favoritesSaved.WithLabelValues("saved").Add(float64(saved))
	m.favoritesSaved.WithLabelValues("failed").Add(float64(failed))
}

// SetCircuitState publishes a breaker state
func (m *Metrics) SetCircuitState(name string, state int) {
	m.circuitState.WithLabelValues(name).Set(float64(state))
}
