package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"SnapshotsCollected", SnapshotsCollected},
		{"SnapshotStoreErrors", SnapshotStoreErrors},
		{"UploadsTotal", UploadsTotal},
		{"BatchesTotal", BatchesTotal},
		{"RecordsPruned", RecordsPruned},
		{"PartialFailureBatches", PartialFailureBatches},
		{"PipelineTicksTotal", PipelineTicksTotal},
		{"PipelineTicksSkipped", PipelineTicksSkipped},
		{"UploadLatency", UploadLatency},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_IncrementNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		SnapshotsCollected.Inc()
		UploadsTotal.WithLabelValues("success").Inc()
		UploadsTotal.WithLabelValues("failure").Inc()
		BatchesTotal.WithLabelValues("success").Inc()
		BatchesTotal.WithLabelValues("failed").Inc()
		PipelineTicksTotal.WithLabelValues("collection").Inc()
		PipelineTicksSkipped.WithLabelValues("upload").Inc()
		UploadLatency.Observe(0.2)
	})
}
