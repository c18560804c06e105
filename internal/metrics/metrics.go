package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reminders"

// Metrics groups every collector exported by the reminder service.
type Metrics struct {
	registry *prometheus.Registry

	sweeps         *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	candidates     *prometheus.CounterVec
	unresolved     *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	messages       *prometheus.GaugeVec
	ledgerOps      *prometheus.CounterVec
	events         *prometheus.CounterVec
	lastSweepUnixS prometheus.Gauge
}

// New registers collectors on a private registry.
// Params: none.
// Returns: metrics set with process and Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		sweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Completed batch sweeps by outcome.",
		}, []string{"result"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one batch sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate events produced by the scanner.",
		}, []string{"trigger"}),
		unresolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_templates_total",
			Help:      "Candidates dropped because no template matched the rule category.",
		}, []string{"trigger"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Gateway read failures by source.",
		}, []string{"source"}),
		messages: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages",
			Help:      "Compiled messages from the last sweep by ledger status.",
		}, []string{"status"}),
		ledgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger mark/unmark operations by outcome.",
		}, []string{"op", "result"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Point-mode entity events by kind and outcome.",
		}, []string{"kind", "result"}),
		lastSweepUnixS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the last completed sweep.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
// Params: none.
// Returns: HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for tests.
// Params: none.
// Returns: registry gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSweep records one finished sweep.
// Params: start time, end time, pending/sent counts, and whether any source failed.
// Returns: none.
func (m *Metrics) ObserveSweep(started, finished time.Time, pending, sent int, partial bool) {
	if m == nil {
		return
	}
	result := "ok"
	if partial {
		result = "partial"
	}
	m.sweeps.WithLabelValues(result).Inc()
	m.sweepDuration.Observe(finished.Sub(started).Seconds())
	m.messages.WithLabelValues("pending").Set(float64(pending))
	m.messages.WithLabelValues("sent").Set(float64(sent))
	m.lastSweepUnixS.Set(float64(finished.Unix()))
}

// Candidate counts one scanner output.
func (m *Metrics) Candidate(trigger string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(trigger).Inc()
}

// Unresolved counts one candidate without a template.
func (m *Metrics) Unresolved(trigger string) {
	if m == nil {
		return
	}
	m.unresolved.WithLabelValues(trigger).Inc()
}

// FetchError counts one failed gateway read.
func (m *Metrics) FetchError(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

// LedgerOp counts one ledger write.
// Params: operation name and error result.
// Returns: none.
func (m *Metrics) LedgerOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerOps.WithLabelValues(op, result).Inc()
}

// Event counts one point-mode event.
// Params: event kind and outcome (compiled, skipped, invalid, error).
// Returns: none.
func (m *Metrics) Event(kind, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
}
