// Package metrics provides Prometheus metrics for the document export service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Row store metrics
	SheetsRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetdocs_sheets_requests_total",
			Help: "Total number of spreadsheet API calls",
		},
		[]string{"op", "status"},
	)

	// BOM evaluation metrics
	BOMEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetdocs_bom_evaluations_total",
			Help: "Total number of line item evaluations by outcome",
		},
		[]string{"outcome"},
	)

	BOMReadAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetdocs_bom_read_attempts",
			Help:    "Number of reads needed before recalculated values appeared",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		},
	)

	ScratchClearFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetdocs_scratch_clear_failures_total",
			Help: "Scratch ranges that could not be cleared after all retries",
		},
	)

	LeaseWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetdocs_lease_wait_seconds",
			Help:    "Time spent waiting for a scratch lease",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	// Document export metrics
	DocumentExports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetdocs_document_exports_total",
			Help: "Total number of document exports",
		},
		[]string{"document", "status"},
	)
)
