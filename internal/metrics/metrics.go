package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage counters, exposed via the monitoring server's /metrics.

var (
	// Collector
	SnapshotsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "collector",
		Name:      "snapshots_total",
		Help:      "Total device/network snapshots collected",
	})

	SnapshotStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "collector",
		Name:      "store_errors_total",
		Help:      "Total snapshot insert failures",
	})

	// Uploader
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "uploader",
		Name:      "uploads_total",
		Help:      "Total record upload attempts by result",
	}, []string{"result"})

	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "uploader",
		Name:      "batches_total",
		Help:      "Total upload batches by outcome",
	}, []string{"outcome"})

	RecordsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "uploader",
		Name:      "records_pruned_total",
		Help:      "Total stored records deleted after batch upload",
	})

	PartialFailureBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "uploader",
		Name:      "partial_failure_batches_total",
		Help:      "Total batches pruned while some records failed to upload",
	})

	// Pipeline scheduling
	PipelineTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "pipeline",
		Name:      "ticks_total",
		Help:      "Total periodic task ticks by task",
	}, []string{"task"})

	PipelineTicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofmesh",
		Subsystem: "pipeline",
		Name:      "ticks_skipped_total",
		Help:      "Total ticks skipped because no authenticated user exists",
	}, []string{"task"})

	UploadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "proofmesh",
		Subsystem: "uploader",
		Name:      "upload_duration_seconds",
		Help:      "Single record upload duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)
