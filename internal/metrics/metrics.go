// Package metrics holds the prometheus collectors of the fingerprint service.
// They are registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fingerprints"

var (
	// SolvesTotal counts finished solves.
	// Labels: backend, status (optimal, time_limit, infeasible, ...)
	SolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "solves_total",
		Help:      "Total solves by backend and terminal status",
	}, []string{"backend", "status"})

	// SolveDuration measures wall-clock time of a solve.
	// Labels: backend
	SolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "solve_duration_seconds",
		Help:      "Solve wall-clock time in seconds",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"backend"})

	// IncumbentsTotal counts incumbents recorded on trails.
	// Labels: backend
	IncumbentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "incumbents_total",
		Help:      "Total incumbent solutions recorded",
	}, []string{"backend"})

	// AbandonedSearches tracks gophersat searches still running after their
	// solve returned on deadline or cancel.
	AbandonedSearches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "solver",
		Name:      "abandoned_searches",
		Help:      "Uninterruptible searches still running after their solve returned",
	})

	// CheckpointsEvaluated counts scored checkpoints.
	// Labels: split (train, validation, test, table_validation, table_test)
	CheckpointsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "checkpoints_total",
		Help:      "Total checkpoint reports computed by split",
	}, []string{"split"})

	// CheckpointsSkipped counts checkpoints without a partition.
	CheckpointsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "checkpoints_skipped_total",
		Help:      "Total checkpoints skipped because they carry no partition",
	})

	// ScoreCacheHits counts reports served from the partition cache.
	ScoreCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "cache_hits_total",
		Help:      "Total reports reused for an identical partition",
	})

	// JobsTotal counts finished background jobs.
	// Labels: type (optimize, evaluate), outcome (completed, failed)
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Total finished jobs by type and outcome",
	}, []string{"type", "outcome"})

	// JobsRunning tracks jobs currently holding a worker slot.
	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "running",
		Help:      "Jobs currently running",
	})
)
