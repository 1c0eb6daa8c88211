package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ImportMetrics collects one import run on a private registry so the result can be
// written out as a node_exporter textfile after the process exits.
type ImportMetrics struct {
	registry *prometheus.Registry

	rowsTotal   *prometheus.CounterVec
	rowDuration prometheus.Histogram

	lastRunTimestamp prometheus.Gauge
	lastRunDuration  prometheus.Gauge
	lastRunHalted    prometheus.Gauge
	recounted        prometheus.Gauge
}

func NewImportMetrics() *ImportMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &ImportMetrics{
		registry: reg,
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenova",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Rows processed by the obligation importer, by outcome.",
		}, []string{"outcome", "dry_run"}),
		rowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "greenova",
			Subsystem: "import",
			Name:      "row_duration_seconds",
			Help:      "Time spent normalizing and writing one row.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenova",
			Subsystem: "import",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last import run finished.",
		}),
		lastRunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenova",
			Subsystem: "import",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last import run.",
		}),
		lastRunHalted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenova",
			Subsystem: "import",
			Name:      "last_run_halted",
			Help:      "Whether the last import run stopped on a row error (1/0).",
		}),
		recounted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenova",
			Subsystem: "import",
			Name:      "mechanisms_recounted",
			Help:      "Mechanisms whose counters were recomputed after the last run.",
		}),
	}
}

func (m *ImportMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ImportMetrics) ObserveRow(outcome Outcome, dryRun bool, d time.Duration) {
	if m == nil {
		return
	}
	m.rowsTotal.WithLabelValues(outcome.String(), boolLabel(dryRun)).Inc()
	m.rowDuration.Observe(d.Seconds())
}

func (m *ImportMetrics) ObserveRun(r *ImportReport) {
	if m == nil || r == nil {
		return
	}
	m.lastRunTimestamp.Set(float64(r.FinishedAt.Unix()))
	m.lastRunDuration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
	m.recounted.Set(float64(r.MechanismsRecounted))
	if r.Halted {
		m.lastRunHalted.Set(1)
	} else {
		m.lastRunHalted.Set(0)
	}
}

// WriteTextfile atomically writes the collected metrics in text exposition format.
func (m *ImportMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
