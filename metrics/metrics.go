package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the assistant's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageLatency    *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	chunks          *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	knowledgeChunks prometheus.Gauge
}

// New registers every collector under namespace, plus the Go runtime and
// process collectors.
func New(namespace string) *Metrics {
	ns := FmtFixer(namespace)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "pipeline",
			Name:      "stage_latency_ms",
			Help:      "Latency of pipeline stages in milliseconds",
			Buckets:   []float64{50, 100, 200, 300, 450, 600, 800, 1200, 2000, 5000},
		}, []string{"stage"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Chat turns by outcome",
		}, []string{"status"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pipeline",
			Name:      "chunks_total",
			Help:      "Emitted text and audio chunks",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		knowledgeChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "knowledge",
			Name:      "chunks",
			Help:      "Knowledge chunks currently loaded",
		}),
	}
	reg.MustRegister(m.stageLatency, m.turns, m.chunks, m.httpRequests, m.httpDuration, m.knowledgeChunks)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveStage(stage string, ms float64) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(ms)
}

func (m *Metrics) CountTurn(status string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(status).Inc()
}

func (m *Metrics) CountChunk(kind string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SetKnowledgeChunks(n int) {
	if m == nil {
		return
	}
	m.knowledgeChunks.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Status(404) }
	}
	h := promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// FmtFixer turns dots and dashes into underscores so the name is a valid
// metric component.
func FmtFixer(in string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(in)
}
