// Package metrics holds the Prometheus instruments for the processing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsProcessed counts documents that reached a terminal status.
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakdown_documents_processed_total",
			Help: "Documents processed, labeled by terminal status",
		},
		[]string{"status"},
	)

	// DocumentsFailed counts per-document failures by error code.
	DocumentsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakdown_documents_failed_total",
			Help: "Documents that failed, labeled by error code",
		},
		[]string{"error_code"},
	)

	// LineItemsWritten counts line items written into completed workbooks.
	LineItemsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "breakdown_line_items_written_total",
			Help: "Line items written into completed workbooks",
		},
	)

	// StageDuration observes wall time per pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "breakdown_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// BatchesProcessed counts completed batch runs.
	BatchesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "breakdown_batches_processed_total",
			Help: "Batch runs completed",
		},
	)
)
