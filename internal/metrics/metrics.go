package metrics

import (
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/LouYuanbo1/catalogsync/internal/service/crawler"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the crawl collectors on a dedicated registry.
type Metrics struct {
	Registry       *prometheus.Registry
	ScopesTotal    *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	SyncedTotal    *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	CatalogEntries prometheus.Gauge
}

var (
	_ crawler.Observer     = (*Metrics)(nil)
	_ crawler.SizeReporter = (*Metrics)(nil)
)

func New() *Metrics {
	registry := prometheus.NewRegistry()

	scopes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_scopes_total",
			Help: "Finished crawl scopes by scope and result.",
		},
		[]string{"scope", "result"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_errors_total",
			Help: "Scope failures by scope and error class.",
		},
		[]string{"scope", "class"},
	)
	synced := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_synced_total",
			Help: "Catalog upserts by outcome.",
		},
		[]string{"outcome"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_runs_total",
			Help: "Completed crawl runs by result.",
		},
		[]string{"result"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogsync_run_duration_seconds",
			Help:    "Wall time of crawl runs.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		},
	)

	catalogSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_catalog_entries",
			Help: "Entries in the catalog store after the last run.",
		},
	)

	registry.MustRegister(scopes, errorsTotal, synced, runs, runDuration, catalogSize)

	return &Metrics{
		Registry:       registry,
		ScopesTotal:    scopes,
		ErrorsTotal:    errorsTotal,
		SyncedTotal:    synced,
		RunsTotal:      runs,
		RunDuration:    runDuration,
		CatalogEntries: catalogSize,
	}
}

func (m *Metrics) ScopeDone(scope crawler.Scope, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ScopesTotal.WithLabelValues(string(scope), "failed").Inc()
		m.ErrorsTotal.WithLabelValues(string(scope), crawler.Classify(err)).Inc()
		return
	}
	m.ScopesTotal.WithLabelValues(string(scope), "ok").Inc()
}

func (m *Metrics) Synced(outcome catalog.Outcome) {
	if m == nil {
		return
	}
	m.SyncedTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) RunDone(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = crawler.Classify(err)
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) CatalogSize(n int64) {
	if m == nil {
		return
	}
	m.CatalogEntries.Set(float64(n))
}
