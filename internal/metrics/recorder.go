package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wordfmt"

// DefaultHistory is the number of AI calls kept for summaries.
const DefaultHistory = 1000

// Config configures a Recorder.
type Config struct {
	// Registry to register collectors with (default: a new registry).
	Registry *prometheus.Registry

	// History bounds the in-memory call log (default: DefaultHistory).
	History int

	// LatencyBuckets for duration histograms, in seconds.
	LatencyBuckets []float64
}

// Recorder updates Prometheus collectors and keeps a bounded log of recent
// AI calls. It is safe for concurrent use; a nil *Recorder discards
// everything.
type Recorder struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	cacheWrites  *prometheus.CounterVec
	llmCalls     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	llmTokens    *prometheus.CounterVec
	inFlight     prometheus.Gauge

	mu      sync.RWMutex
	history []Metric
	next    int
	full    bool
}

// NewRecorder creates a recorder and registers its collectors.
func NewRecorder(cfg Config) *Recorder {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.History <= 0 {
		cfg.History = DefaultHistory
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}
	}

	r := &Recorder{
		registry: cfg.Registry,
		history:  make([]Metric, cfg.History),
	}

	r.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "format",
			Name:      "requests_total",
			Help:      "Formatting requests by outcome",
		},
		[]string{"outcome"},
	)
	r.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "format",
			Name:      "duration_seconds",
			Help:      "End-to-end formatting latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"outcome"},
	)
	r.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "format",
			Name:      "in_flight",
			Help:      "Formatting requests currently being processed",
		},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result",
		},
		[]string{"backend", "result"},
	)
	r.cacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Background cache writes by status",
		},
		[]string{"status"},
	)
	r.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "LLM calls by provider, model and status",
		},
		[]string{"provider", "model", "status"},
	)
	r.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider", "model"},
	)
	r.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "LLM tokens by model and type",
		},
		[]string{"model", "type"},
	)

	cfg.Registry.MustRegister(
		r.requests, r.duration, r.inFlight,
		r.cacheLookups, r.cacheWrites,
		r.llmCalls, r.llmLatency, r.llmTokens,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Begin marks a request in flight. The returned func records its outcome.
func (r *Recorder) Begin() func(Outcome) {
	if r == nil {
		return func(Outcome) {}
	}
	start := time.Now()
	r.inFlight.Inc()
	return func(o Outcome) {
		r.inFlight.Dec()
		r.requests.WithLabelValues(string(o)).Inc()
		r.duration.WithLabelValues(string(o)).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheLookup counts a lookup against backend.
func (r *Recorder) RecordCacheLookup(backend string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(backend, result).Inc()
}

// RecordCacheWrite counts a background write.
func (r *Recorder) RecordCacheWrite(err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.cacheWrites.WithLabelValues(status).Inc()
}

// RecordLLMCall updates the LLM collectors and appends m to the call log.
func (r *Recorder) RecordLLMCall(m Metric) {
	if r == nil {
		return
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	status := "success"
	if !m.Success {
		status = "error"
	}
	r.llmCalls.WithLabelValues(m.Provider, m.Model, status).Inc()
	if m.ExecutionSeconds > 0 {
		r.llmLatency.WithLabelValues(m.Provider, m.Model).Observe(m.ExecutionSeconds)
	}
	if m.PromptTokens > 0 {
		r.llmTokens.WithLabelValues(m.Model, "prompt").Add(float64(m.PromptTokens))
	}
	if m.CompletionTokens > 0 {
		r.llmTokens.WithLabelValues(m.Model, "completion").Add(float64(m.CompletionTokens))
	}

	r.mu.Lock()
	r.history[r.next] = m
	r.next = (r.next + 1) % len(r.history)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}
