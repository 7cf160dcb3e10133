package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/metrics"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// SnapshotCollector produces one device/network snapshot
type SnapshotCollector interface {
	Collect(ctx context.Context) *database.DeviceDataRecord
}

// Pipeline runs the periodic collect/store/upload/prune cycle. Collection
// and batch upload are independent tasks on their own tickers; both tasks
// skip their tick when no authenticated user exists.
type Pipeline struct {
	config    *utils.ConfigManager
	logger    *utils.LogsManager
	db        *database.SQLiteManager
	collector SnapshotCollector
	uploader  Uploader

	ctx          context.Context
	cancel       context.CancelFunc
	running      bool
	runningMutex sync.Mutex
	wg           sync.WaitGroup
}

// NewPipeline creates a pipeline over the given store, collector and uploader
func NewPipeline(config *utils.ConfigManager, logger *utils.LogsManager, db *database.SQLiteManager, collector SnapshotCollector, uploader Uploader) *Pipeline {
	return &Pipeline{
		config:    config,
		logger:    logger,
		db:        db,
		collector: collector,
		uploader:  uploader,
	}
}

// Start launches the collection and upload tasks. Calling Start on a
// running pipeline does nothing. A stopped pipeline can be started again.
func (p *Pipeline) Start() {
	p.runningMutex.Lock()
	defer p.runningMutex.Unlock()

	if p.running {
		p.logger.Debug("Pipeline already running, ignoring Start", "pipeline")
		return
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	collectionInterval := p.config.GetConfigDuration("collection_interval", 120*time.Second)
	uploadInterval := p.config.GetConfigDuration("upload_interval", 120*time.Second)

	p.logger.Info(fmt.Sprintf("Starting pipeline (collection every %v, upload every %v)", collectionInterval, uploadInterval), "pipeline")

	p.running = true

	p.wg.Add(2)
	go p.taskLoop("collection", collectionInterval, p.collectionTick)
	go p.taskLoop("upload", uploadInterval, p.uploadTick)
}

// Stop cancels both tasks and waits for in-flight ticks to finish
func (p *Pipeline) Stop() {
	p.runningMutex.Lock()
	defer p.runningMutex.Unlock()

	if !p.running {
		return
	}

	p.logger.Info("Stopping pipeline...", "pipeline")

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Pipeline stopped", "pipeline")
}

// taskLoop fires immediately, then on every ticker interval
func (p *Pipeline) taskLoop(task string, interval time.Duration, tick func(ctx context.Context)) {
	defer p.wg.Done()

	p.runTick(task, tick)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug(fmt.Sprintf("Pipeline %s task stopped", task), "pipeline")
			return

		case <-ticker.C:
			p.runTick(task, tick)
		}
	}
}

func (p *Pipeline) runTick(task string, tick func(ctx context.Context)) {
	metrics.PipelineTicksTotal.WithLabelValues(task).Inc()

	if !p.hasAuthenticatedUser(p.ctx) {
		p.logger.Debug(fmt.Sprintf("No authenticated user, skipping %s tick", task), "pipeline")
		metrics.PipelineTicksSkipped.WithLabelValues(task).Inc()
		return
	}

	tick(p.ctx)
}

func (p *Pipeline) hasAuthenticatedUser(ctx context.Context) bool {
	user, err := p.db.Users.GetCurrentUser(ctx)
	if err != nil {
		p.logger.Warn(fmt.Sprintf("Failed to look up current user: %v", err), "pipeline")
		return false
	}
	return user != nil && user.Token != ""
}

// collectionTick collects one snapshot, stores it and uploads it immediately.
// An insert failure is logged and the upload still attempted.
func (p *Pipeline) collectionTick(ctx context.Context) {
	record := p.collector.Collect(ctx)
	metrics.SnapshotsCollected.Inc()

	if err := p.db.DeviceData.InsertRecord(ctx, record); err != nil {
		p.logger.Error(fmt.Sprintf("Failed to store snapshot: %v", err), "pipeline")
		metrics.SnapshotStoreErrors.Inc()
	}

	if err := p.uploadOne(ctx, record); err != nil {
		p.logger.Warn(fmt.Sprintf("Immediate snapshot upload failed: %v", err), "pipeline")
	}
}

// uploadTick drains up to one batch of stored records. Records are uploaded
// one by one; the batch is pruned whenever at least one upload succeeded,
// which also discards the records that failed in that batch.
func (p *Pipeline) uploadTick(ctx context.Context) {
	batchSize := p.config.GetConfigInt("proof_upload_batch_size", 100, 1, 1000)

	batch, err := p.db.DeviceData.GetBatch(ctx, batchSize)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Failed to read stored snapshots: %v", err), "pipeline")
		return
	}
	if len(batch) == 0 {
		return
	}

	uploaded := 0
	failed := 0
	ids := make([]string, 0, len(batch))
	for _, record := range batch {
		ids = append(ids, record.ID)
		if err := p.uploadOne(ctx, record); err != nil {
			p.logger.Warn(fmt.Sprintf("Upload failed for record %s: %v", record.ID, err), "pipeline")
			failed++
			continue
		}
		uploaded++
	}

	if uploaded == 0 {
		p.logger.Warn(fmt.Sprintf("Upload batch failed entirely (%d records kept)", len(batch)), "pipeline")
		metrics.BatchesTotal.WithLabelValues("failed").Inc()
		return
	}

	// A batch counts as successful once a single record went through, and
	// every id in it is deleted. Records that failed to upload in a mixed
	// batch are lost here rather than retried.
	deleted, err := p.db.DeviceData.DeleteByIDs(ctx, ids)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Failed to prune uploaded batch: %v", err), "pipeline")
		return
	}

	metrics.BatchesTotal.WithLabelValues("success").Inc()
	metrics.RecordsPruned.Add(float64(deleted))
	if failed > 0 {
		metrics.PartialFailureBatches.Inc()
		p.logger.Warn(fmt.Sprintf("Pruned batch of %d with %d failed uploads", len(batch), failed), "pipeline")
	} else {
		p.logger.Debug(fmt.Sprintf("Uploaded and pruned batch of %d records", uploaded), "pipeline")
	}
}

func (p *Pipeline) uploadOne(ctx context.Context, record *database.DeviceDataRecord) error {
	start := time.Now()
	err := p.uploader.UploadRecord(ctx, record)
	metrics.UploadLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.UploadsTotal.WithLabelValues("success").Inc()
	return nil
}

// CollectStoreUploadAndCleanup runs one full cycle synchronously: collect
// and store a snapshot, upload it, then drain one stored batch. Used by the
// periodic tasks indirectly and by one-shot invocations.
func (p *Pipeline) CollectStoreUploadAndCleanup(ctx context.Context) {
	if !p.hasAuthenticatedUser(ctx) {
		p.logger.Debug("No authenticated user, skipping pipeline cycle", "pipeline")
		metrics.PipelineTicksSkipped.WithLabelValues("cycle").Inc()
		return
	}

	p.collectionTick(ctx)
	p.uploadTick(ctx)
}
