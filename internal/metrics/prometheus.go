package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts pipeline runs by terminal state.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insarpipe_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"state"},
	)

	// StageDuration tracks how long each pipeline stage takes in seconds.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insarpipe_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10), // 100ms to ~7h
		},
		[]string{"stage"},
	)

	// DownloadsTotal counts artifact fetches by kind and outcome.
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insarpipe_downloads_total",
			Help: "Total number of artifact downloads",
		},
		[]string{"kind", "outcome"},
	)

	// CoverageRetries counts DEM buffer-escalation retries.
	CoverageRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insarpipe_dem_coverage_retries_total",
			Help: "Total number of DEM coverage retries with an enlarged buffer",
		},
	)
)
