// Package metrics exposes Prometheus collectors for the hunter pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal      *prometheus.CounterVec
	fetchBytesTotal   *prometheus.CounterVec
	circuitOpensTotal prometheus.Counter
	artifactsTotal    *prometheus.CounterVec
	matchesTotal      prometheus.Counter
	scanBytesTotal    prometheus.Counter

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hunter_fetches_total",
				Help: "Total sitemap fetch attempts, labeled by domain and outcome.",
			},
			[]string{"domain", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hunter_fetch_bytes_total",
				Help: "Total decompressed bytes fetched, labeled by domain.",
			},
			[]string{"domain"},
		)

		circuitOpensTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hunter_circuit_opens_total",
				Help: "Total circuit breaker transitions to open.",
			},
		)

		artifactsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hunter_artifacts_total",
				Help: "Total classified artifacts, labeled by kind.",
			},
			[]string{"kind"},
		)

		matchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hunter_matches_total",
				Help: "Total phrase matches recorded by the searcher.",
			},
		)

		scanBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hunter_scan_bytes_total",
				Help: "Total bytes scanned by the incremental searcher.",
			},
		)
	})
}

// ObserveFetch counts one fetch attempt.
func ObserveFetch(domain, outcome string, bytes int64) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(domain, outcome).Inc()
	if bytes > 0 {
		fetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
	}
}

// ObserveCircuitOpen counts one circuit transition to open.
func ObserveCircuitOpen() {
	if circuitOpensTotal == nil {
		return
	}
	circuitOpensTotal.Inc()
}

// ObserveArtifact counts one classified artifact.
func ObserveArtifact(kind string) {
	if artifactsTotal == nil {
		return
	}
	artifactsTotal.WithLabelValues(kind).Inc()
}

// ObserveMatches counts phrase matches.
func ObserveMatches(n int) {
	if matchesTotal == nil || n <= 0 {
		return
	}
	matchesTotal.Add(float64(n))
}

// ObserveScanBytes counts bytes consumed by the searcher.
func ObserveScanBytes(n int64) {
	if scanBytesTotal == nil || n <= 0 {
		return
	}
	scanBytesTotal.Add(float64(n))
}
