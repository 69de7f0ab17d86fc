// Package metrics records trace and store activity in a private Prometheus
// registry and renders it for the CLI.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/irm/internal/net/circuit"
	"github.com/sawpanic/irm/internal/net/ratelimit"
	"github.com/sawpanic/irm/internal/tracer"
)

// Query outcomes
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultTimeout     = "timeout"
	ResultCircuitOpen = "circuit_open"
	ResultCancelled   = "cancelled"
)

// Registry holds all Prometheus metrics for the tracer.
type Registry struct {
	reg *prometheus.Registry

	Traces        *prometheus.CounterVec
	TraceDuration prometheus.Histogram
	TraceEvents   *prometheus.CounterVec
	NAVShock      prometheus.Gauge

	StoreQueries  *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
	BreakerState  *prometheus.GaugeVec
	BreakerHealth *prometheus.GaugeVec
	BreakerRate   *prometheus.GaugeVec
	LimiterTokens *prometheus.GaugeVec
}

// NewRegistry creates a registry with every tracer metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Traces: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irm_traces_total",
				Help: "Total number of traces run by outcome",
			},
			[]string{"status"},
		),

		TraceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "irm_trace_duration_seconds",
				Help:    "Wall time of a full trace in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),

		TraceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irm_trace_events_total",
				Help: "Traversal events by kind",
			},
			[]string{"event"},
		),

		NAVShock: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "irm_nav_shock_percent",
				Help: "Estimated portfolio NAV shock of the last trace",
			},
		),

		StoreQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irm_store_queries_total",
				Help: "Store round trips by store and result",
			},
			[]string{"store", "result"},
		),

		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "irm_store_query_duration_seconds",
				Help:    "Store round trip latency in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"store"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "irm_breaker_state",
				Help: "Circuit breaker state per store (0=closed, 1=open, 2=half-open)",
			},
			[]string{"store"},
		),

		BreakerHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "irm_breaker_healthy",
				Help: "1 when the store's breaker is closed with a success rate of at least 90%",
			},
			[]string{"store"},
		),

		BreakerRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "irm_breaker_success_rate",
				Help: "Share of calls through the breaker that succeeded",
			},
			[]string{"store"},
		),

		LimiterTokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "irm_limiter_tokens_available",
				Help: "Query tokens left in each store's bucket",
			},
			[]string{"store"},
		),
	}

	r.reg.MustRegister(
		r.Traces,
		r.TraceDuration,
		r.TraceEvents,
		r.NAVShock,
		r.StoreQueries,
		r.StoreDuration,
		r.BreakerState,
		r.BreakerHealth,
		r.BreakerRate,
		r.LimiterTokens,
	)
	return r
}

// ObserveQuery records one store round trip.
func (r *Registry) ObserveQuery(store string, elapsed time.Duration, err error) {
	r.StoreDuration.WithLabelValues(store).Observe(elapsed.Seconds())
	r.StoreQueries.WithLabelValues(store, classify(err)).Inc()
}

// ObserveTrace records the outcome of one trace.
func (r *Registry) ObserveTrace(trace *tracer.Trace, elapsed time.Duration, err error) {
	r.TraceDuration.Observe(elapsed.Seconds())
	status := ResultOK
	if err != nil {
		status = classify(err)
	}
	r.Traces.WithLabelValues(status).Inc()
	if trace == nil {
		return
	}

	st := trace.Stats
	r.TraceEvents.WithLabelValues("expanded").Add(float64(st.Expanded))
	r.TraceEvents.WithLabelValues("depth_capped").Add(float64(st.DepthCapped))
	r.TraceEvents.WithLabelValues("recorded").Add(float64(st.Recorded))
	r.TraceEvents.WithLabelValues("cycle_skip").Add(float64(st.CycleSkips))
	r.TraceEvents.WithLabelValues("pruned").Add(float64(st.Pruned))
	r.TraceEvents.WithLabelValues("lookup_fail").Add(float64(st.LookupFails))

	log.Debug().
		Int("impacts", len(trace.Impacts)).
		Dur("duration", elapsed).
		Str("status", status).
		Msg("Trace recorded")
}

// ObserveNAVShock records the aggregate result of the last trace.
func (r *Registry) ObserveNAVShock(total float64) {
	r.NAVShock.Set(total)
}

// ObserveBreaker records a breaker's state and health.
func (r *Registry) ObserveBreaker(store string, stats circuit.Stats) {
	r.BreakerState.WithLabelValues(store).Set(float64(stats.State))
	r.BreakerRate.WithLabelValues(store).Set(stats.SuccessRate)
	healthy := 0.0
	if stats.IsHealthy() {
		healthy = 1
	}
	r.BreakerHealth.WithLabelValues(store).Set(healthy)
}

// ObserveLimiter records the tokens left per store.
func (r *Registry) ObserveLimiter(stats map[string]ratelimit.LimiterStats) {
	for store, st := range stats {
		r.LimiterTokens.WithLabelValues(store).Set(st.TokensAvailable)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, circuit.ErrCircuitOpen):
		return ResultCircuitOpen
	case errors.Is(err, circuit.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return ResultTimeout
	case errors.Is(err, context.Canceled):
		return ResultCancelled
	default:
		return ResultError
	}
}

// Sample is one flattened metric value.
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Snapshot gathers every non-empty series as sorted samples. Histograms are
// reported as their count and sum.
func (r *Registry) Snapshot() ([]Sample, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var samples []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, Sample{mf.GetName(), labels, m.GetCounter().GetValue()})
			case dto.MetricType_GAUGE:
				samples = append(samples, Sample{mf.GetName(), labels, m.GetGauge().GetValue()})
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				samples = append(samples,
					Sample{mf.GetName() + "_count", labels, float64(h.GetSampleCount())},
					Sample{mf.GetName() + "_sum", labels, h.GetSampleSum()},
				)
			}
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

// WriteText prints the snapshot one series per line.
func (r *Registry) WriteText(w io.Writer) error {
	samples, err := r.Snapshot()
	if err != nil {
		return err
	}
	for _, s := range samples {
		if _, err := fmt.Fprintf(w, "%-40s %-32s %g\n", s.Name, s.Labels, s.Value); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p.GetName(), p.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
