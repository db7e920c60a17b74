// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeduplicationRunsTotal tracks deduplication runs by outcome
	DeduplicationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "deduplication",
			Name:      "runs_total",
			Help:      "Total number of deduplication runs by status",
		},
		[]string{"status"},
	)

	// DeduplicationRunDuration tracks deduplication run duration in seconds
	DeduplicationRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "deduplication",
			Name:      "run_duration_seconds",
			Help:      "Duration of deduplication runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		},
	)

	// DeduplicationTargets tracks how many contacts each run scanned
	DeduplicationTargets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "deduplication",
			Name:      "targets",
			Help:      "Number of target contacts scanned per run",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	// DuplicatePairsFound tracks candidate pairs stored for review
	DuplicatePairsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "deduplication",
			Name:      "pairs_found_total",
			Help:      "Total number of duplicate pairs stored for review",
		},
	)

	// ExcludedPairsSkipped tracks candidate pairs dropped because they were already resolved
	ExcludedPairsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "deduplication",
			Name:      "excluded_pairs_skipped_total",
			Help:      "Total number of candidate pairs skipped because they were resolved",
		},
	)

	// ResolutionsTotal tracks applied resolutions by action
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "resolution",
			Name:      "actions_total",
			Help:      "Total number of resolution actions by action and outcome",
		},
		[]string{"action", "status"},
	)

	// RunsInFlight tracks deduplication runs currently executing
	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clover",
			Subsystem: "deduplication",
			Name:      "runs_in_flight",
			Help:      "Number of deduplication runs currently executing",
		},
	)
)

// Status labels
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusLocked  = "locked"
)

// RecordRun records the outcome of a deduplication run
func RecordRun(status string, seconds float64, targets, pairs int) {
	DeduplicationRunsTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	DeduplicationRunDuration.Observe(seconds)
	DeduplicationTargets.Observe(float64(targets))
	DuplicatePairsFound.Add(float64(pairs))
}

// RecordResolution records a resolution action
func RecordResolution(action string, ok bool) {
	status := StatusSuccess
	if !ok {
		status = StatusFailed
	}
	ResolutionsTotal.WithLabelValues(action, status).Inc()
}
