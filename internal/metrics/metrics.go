// Package metrics holds the Prometheus collectors of the orchestrator and its
// HTTP surface. A nil *Metrics records nothing.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoice_agent"

type Metrics struct {
	registry *prometheus.Registry

	chatRequests    *prometheus.CounterVec
	classifications *prometheus.CounterVec
	modelTier       *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	loopSteps       prometheus.Histogram
	terminations    *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	chatRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat messages handled by outcome.",
		},
		[]string{"outcome"},
	)
	classifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Intent classifications by source (rule, model, fallback).",
		},
		[]string{"source"},
	)
	modelTier := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tier_total",
			Help:      "Loop runs by selected model tier.",
		},
		[]string{"tier"},
	)
	toolCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and status.",
		},
		[]string{"tool", "status"},
	)
	loopSteps := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loop_steps",
			Help:      "Model round-trips per loop run.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		},
	)
	terminations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_terminations_total",
			Help:      "Loop runs by termination reason.",
		},
		[]string{"reason"},
	)
	jobRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs by job and status.",
		},
		[]string{"job", "status"},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"method", "route"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(
		chatRequests,
		classifications,
		modelTier,
		toolCalls,
		loopSteps,
		terminations,
		jobRuns,
		requestTotal,
		requestDuration,
		requestInFlight,
	)

	return &Metrics{
		registry:        registry,
		chatRequests:    chatRequests,
		classifications: classifications,
		modelTier:       modelTier,
		toolCalls:       toolCalls,
		loopSteps:       loopSteps,
		terminations:    terminations,
		jobRuns:         jobRuns,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordChat(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *Metrics) RecordClassification(source, tier string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(orUnknown(source)).Inc()
	m.modelTier.WithLabelValues(orUnknown(tier)).Inc()
}

func (m *Metrics) RecordToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.toolCalls.WithLabelValues(orUnknown(tool), status).Inc()
}

func (m *Metrics) RecordLoop(steps int, termination string) {
	if m == nil {
		return
	}
	m.loopSteps.Observe(float64(steps))
	m.terminations.WithLabelValues(orUnknown(termination)).Inc()
}

func (m *Metrics) RecordJob(job string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
}

// Middleware records request counts and latency labelled by the matched chi
// route pattern, so ids in paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
