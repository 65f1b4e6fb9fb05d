// Package metrics exposes Prometheus collectors for the resolution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts field resolutions by the stage that produced
	// the outcome and the outcome status (value, deferred, no_match).
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldbank",
		Name:      "resolutions_total",
		Help:      "Field resolutions by terminal stage and status.",
	}, []string{"stage", "status"})

	// ResolutionDuration tracks end-to-end resolution latency in seconds.
	ResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fieldbank",
		Name:      "resolution_duration_seconds",
		Help:      "Latency of resolveField calls.",
		Buckets:   prometheus.DefBuckets,
	})

	// ConfirmationsTotal counts verified answers written by the confirmation
	// writer, split by whether the write created a new canonical row or
	// replaced an existing one.
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldbank",
		Name:      "confirmations_total",
		Help:      "Confirmed field answers by write mode (created, replaced).",
	}, []string{"mode"})

	// ExtractionsTotal counts extraction intake decisions.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldbank",
		Name:      "extractions_total",
		Help:      "Extraction intake outcomes (stored, skipped_fresh).",
	}, []string{"outcome"})

	// EmbeddingJobsTotal counts background embedding job completions.
	EmbeddingJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldbank",
		Name:      "embedding_jobs_total",
		Help:      "Embedding job terminal states (completed, failed).",
	}, []string{"status"})
)
