// Package metrics provides Prometheus metrics for assistant turns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all assistant metrics. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal        *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	TurnsInFlight     prometheus.Gauge
	ModelCallsTotal   *prometheus.CounterVec
	ModelCallDuration prometheus.Histogram
	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	TokensTotal       *prometheus.CounterVec
	CostCentsTotal    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dayplan_turns_total",
			Help: "Total number of assistant turns by outcome",
		}, []string{"outcome"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dayplan_turn_duration_seconds",
			Help:    "Duration of assistant turns in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		}),
		TurnsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "dayplan_turns_in_flight",
			Help: "Number of assistant turns currently running",
		}),
		ModelCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dayplan_model_calls_total",
			Help: "Total number of model provider calls",
		}, []string{"status"}),
		ModelCallDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dayplan_model_call_duration_seconds",
			Help:    "Duration of model provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ToolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dayplan_tool_calls_total",
			Help: "Total number of tool executions",
		}, []string{"tool", "status"}),
		ToolCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dayplan_tool_call_duration_seconds",
			Help:    "Duration of tool executions in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dayplan_tokens_total",
			Help: "Model tokens consumed",
		}, []string{"direction"}),
		CostCentsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "dayplan_cost_cents_total",
			Help: "Estimated model cost in cents",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(outcome string, duration time.Duration, inputTokens, outputTokens int64, costCents float64) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(duration.Seconds())
	m.TokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	m.CostCentsTotal.Add(costCents)
}

func (m *Metrics) RecordModelCall(status string, duration time.Duration) {
	m.ModelCallsTotal.WithLabelValues(status).Inc()
	m.ModelCallDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
