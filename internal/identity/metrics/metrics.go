package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the identity merge subsystem.
type Metrics struct {
	MergesTotal       *prometheus.CounterVec
	MergeDuration     prometheus.Histogram
	RowsMigratedTotal *prometheus.CounterVec
}

// New creates and registers all identity metrics.
func New() *Metrics {
	return &Metrics{
		MergesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "servio_identity_merges_total",
			Help: "Total merge attempts by outcome",
		}, []string{"outcome"}),
		MergeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "servio_identity_merge_duration_seconds",
			Help:    "End-to-end merge transaction latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		RowsMigratedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "servio_identity_merge_rows_migrated_total",
			Help: "Rows re-pointed or dropped during merges, by relation",
		}, []string{"relation", "action"}),
	}
}

// RecordMerge records one merge attempt.
func (m *Metrics) RecordMerge(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.MergesTotal.WithLabelValues(outcome).Inc()
	m.MergeDuration.Observe(took.Seconds())
}

// RecordRows records migrated row counts for one relation.
func (m *Metrics) RecordRows(relation string, repointed, dropped int) {
	if m == nil {
		return
	}
	if repointed > 0 {
		m.RowsMigratedTotal.WithLabelValues(relation, "repointed").Add(float64(repointed))
	}
	if dropped > 0 {
		m.RowsMigratedTotal.WithLabelValues(relation, "dropped").Add(float64(dropped))
	}
}
