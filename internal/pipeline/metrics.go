package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "figprep_documents_total",
			Help: "Documents processed by the pipeline",
		},
		[]string{"status"},
	)

	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "figprep_pages_total",
			Help: "Pages processed by the pipeline",
		},
		[]string{"status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "figprep_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	rotationsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "figprep_rotations_applied_total",
			Help: "Rotation corrections applied, by angle",
		},
		[]string{"angle"},
	)

	hintsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "figprep_hints_extracted_total",
			Help: "OCR hints retained across all pages",
		},
	)
)
