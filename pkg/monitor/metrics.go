// Package monitor tracks store workload: plain atomic counters for quick
// summaries and Prometheus collectors for scraping.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Plan kinds reported on queries_total.
const (
	PlanIndex = "index"
	PlanScan  = "scan"
	PlanMixed = "mixed"
)

// Monitor holds the collectors shared by every store of a registry. A nil
// *Monitor is valid and records nothing.
type Monitor struct {
	Stats *WorkloadStats

	RecordsSaved   *prometheus.CounterVec
	RecordsDeleted *prometheus.CounterVec
	DuplicateKeys  *prometheus.CounterVec
	Queries        *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	Joins          *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them on reg.
// A nil reg gets a fresh registry so repeated construction never panics on
// duplicate registration.
func New(namespace string, reg prometheus.Registerer) *Monitor {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Monitor{
		Stats: NewWorkloadStats(),
		RecordsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_saved_total",
				Help:      "Records committed to a store.",
			},
			[]string{"store"},
		),
		RecordsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_deleted_total",
				Help:      "Records removed from a store.",
			},
			[]string{"store"},
		),
		DuplicateKeys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_key_total",
				Help:      "Saves rejected by a unique index.",
			},
			[]string{"store"},
		),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Queries executed by plan kind (index, scan, mixed).",
			},
			[]string{"store", "plan"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query latency in seconds, planning through pagination.",
				Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"store"},
		),
		Joins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "joins_total",
				Help:      "Joins executed by strategy (merge, probe, nested).",
			},
			[]string{"strategy"},
		),
	}

	reg.MustRegister(
		m.RecordsSaved,
		m.RecordsDeleted,
		m.DuplicateKeys,
		m.Queries,
		m.QueryDuration,
		m.Joins,
	)
	return m
}

func (m *Monitor) Saved(store string, n int) {
	if m == nil {
		return
	}
	for range n {
		m.Stats.RecordWrite()
	}
	m.RecordsSaved.WithLabelValues(store).Add(float64(n))
}

func (m *Monitor) Deleted(store string) {
	if m == nil {
		return
	}
	m.Stats.RecordWrite()
	m.RecordsDeleted.WithLabelValues(store).Inc()
}

func (m *Monitor) Duplicate(store string) {
	if m == nil {
		return
	}
	m.DuplicateKeys.WithLabelValues(store).Inc()
}

// Query records one executed query. plan is PlanIndex, PlanScan or
// PlanMixed.
func (m *Monitor) Query(store, plan string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Stats.RecordRead()
	if plan != PlanScan {
		m.Stats.RecordHit()
	}
	m.Queries.WithLabelValues(store, plan).Inc()
	m.QueryDuration.WithLabelValues(store).Observe(elapsed.Seconds())
}

func (m *Monitor) Join(strategy string) {
	if m == nil {
		return
	}
	m.Stats.RecordRead()
	m.Joins.WithLabelValues(strategy).Inc()
}

// Handler returns the scrape handler for the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
