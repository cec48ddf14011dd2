// Package convert owns the conversion job lifecycle: it accepts uploads,
// runs the parse -> reconstruct -> export pipeline on a background
// goroutine per job, records progress for polling, and bounds artifact
// lifetime with a best-effort retention sweep.
package convert

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"plyconv/internal/domain"
	"plyconv/internal/export"
	"plyconv/internal/formats"
	"plyconv/internal/infra"
	"plyconv/internal/metrics"
	"plyconv/internal/reconstruct"
	"plyconv/internal/storage"
)

// Coordinator owns every ConversionJob record. The registry map is the only
// shared mutable state; readers always receive snapshot copies.
type Coordinator struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ConversionJob

	store   *storage.FileStore
	logger  infra.Logger
	metrics *metrics.Collector
	ttl     time.Duration

	done     chan struct{}
	closed   sync.Once
	inflight sync.WaitGroup
}

// NewCoordinator builds a coordinator and starts its retention sweeper.
func NewCoordinator(store *storage.FileStore, logger infra.Logger, collector *metrics.Collector, ttl time.Duration) *Coordinator {
	c := &Coordinator{
		jobs:    make(map[string]*domain.ConversionJob),
		store:   store,
		logger:  logger,
		metrics: collector,
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go c.sweep()
	}
	return c
}

// Close stops the retention sweeper. In-flight pipelines are not preempted;
// they discard their output once their job record disappears.
func (c *Coordinator) Close() {
	c.closed.Do(func() { close(c.done) })
}

// Submit validates the request, stores the upload and starts the pipeline.
// Validation failures return ErrInvalidRequest and create no job.
func (c *Coordinator) Submit(ctx context.Context, filename string, file io.Reader, level domain.SmoothingLevel, requested []domain.OutputFormat) (string, error) {
	if len(requested) == 0 {
		return "", fmt.Errorf("%w: no output formats requested", domain.ErrInvalidRequest)
	}
	if !level.Valid() {
		return "", fmt.Errorf("%w: unknown smoothing level %q", domain.ErrInvalidRequest, level)
	}
	seen := make(map[domain.OutputFormat]struct{}, len(requested))
	formatList := make([]domain.OutputFormat, 0, len(requested))
	for _, f := range requested {
		if !f.Valid() {
			return "", fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidRequest, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		formatList = append(formatList, f)
	}

	id := uuid.NewString()
	inputKey, size, err := c.store.WriteFrom(ctx, uploadKey(id), file)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	now := time.Now()
	job := &domain.ConversionJob{
		ID:         id,
		SourceFile: filename,
		InputPath:  inputKey,
		Smoothing:  level,
		Formats:    formatList,
		State:      domain.JobStateQueued,
		Message:    "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.mu.Lock()
	c.jobs[id] = job
	total := len(c.jobs)
	c.mu.Unlock()

	c.metrics.ConversionStarted()
	c.metrics.SetActiveJobs(total)
	c.logger.Info().
		Str("job_id", id).
		Str("file", filename).
		Int64("bytes", size).
		Str("smoothing", string(level)).
		Msg("conversion queued")

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.run(id)
	}()
	return id, nil
}

// waitIdle blocks until every in-flight pipeline has returned.
func (c *Coordinator) waitIdle() {
	c.inflight.Wait()
}

// Status returns a snapshot of the job, or ErrNotFound.
func (c *Coordinator) Status(id string) (*domain.ConversionJob, error) {
	c.mu.RLock()
	job, ok := c.jobs[id]
	var snapshot *domain.ConversionJob
	if ok {
		snapshot = job.Clone()
	}
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return snapshot, nil
}

// Artifact returns the storage key for one completed format, or ErrNotFound.
func (c *Coordinator) Artifact(id string, format domain.OutputFormat) (string, error) {
	job, err := c.Status(id)
	if err != nil {
		return "", err
	}
	key, ok := job.Artifacts[format]
	if !ok || !c.store.Exists(key) {
		return "", fmt.Errorf("%w: no %s artifact for job %s", domain.ErrNotFound, format, id)
	}
	return key, nil
}

// Cleanup deletes the job's artifacts and forgets the record. It is
// idempotent: unknown ids succeed.
func (c *Coordinator) Cleanup(id string) error {
	c.mu.Lock()
	_, existed := c.jobs[id]
	delete(c.jobs, id)
	total := len(c.jobs)
	c.mu.Unlock()

	if err := c.store.RemoveAll(outputPrefix(id)); err != nil {
		c.logger.Warn().Err(err).Str("job_id", id).Msg("artifact cleanup failed")
	}
	if err := c.store.Remove(uploadKey(id)); err != nil {
		c.logger.Warn().Err(err).Str("job_id", id).Msg("upload cleanup failed")
	}
	if existed {
		c.metrics.SetActiveJobs(total)
		c.logger.Info().Str("job_id", id).Msg("job cleaned up")
	}
	return nil
}

// Counts reports tracked and completed job totals.
func (c *Coordinator) Counts() (active, completed int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, j := range c.jobs {
		if j.State == domain.JobStateCompleted {
			completed++
		}
	}
	return len(c.jobs), completed
}

// run executes the pipeline for one job. Each stage re-checks that the job
// record still exists so a cleanup during the run discards the output
// instead of resurrecting the job.
func (c *Coordinator) run(id string) {
	ctx := context.Background()
	defer func() {
		if err := c.store.Remove(uploadKey(id)); err != nil {
			c.logger.Warn().Err(err).Str("job_id", id).Msg("upload removal failed")
		}
	}()

	if !c.setStage(id, domain.JobStateParsing, 5, "reading input file") {
		return
	}
	start := time.Now()
	data, err := c.store.Read(ctx, uploadKey(id))
	if err != nil {
		c.fail(id, fmt.Errorf("%w: %v", domain.ErrParse, err))
		return
	}
	cloud, err := formats.ReadPLY(data)
	if err != nil {
		c.fail(id, fmt.Errorf("%w: %v", domain.ErrParse, err))
		return
	}
	c.metrics.ObserveStage("parse", time.Since(start))
	if !c.setStage(id, domain.JobStateReconstructing, 30,
		fmt.Sprintf("reconstructing surface from %d points", cloud.Len())) {
		return
	}

	job, err := c.Status(id)
	if err != nil {
		return
	}
	start = time.Now()
	surface, err := reconstruct.Run(cloud, job.Smoothing)
	if err != nil {
		c.fail(id, fmt.Errorf("%w: %v", domain.ErrReconstruction, err))
		return
	}
	c.metrics.ObserveStage("reconstruct", time.Since(start))
	if !c.setStage(id, domain.JobStateExporting, 70,
		fmt.Sprintf("exporting %d formats", len(job.Formats))) {
		return
	}

	start = time.Now()
	artifacts := make(map[domain.OutputFormat]string, len(job.Formats))
	var artMu sync.Mutex
	var done int
	g, gctx := errgroup.WithContext(ctx)
	for _, format := range job.Formats {
		format := format
		g.Go(func() error {
			payload, err := export.Write(format, surface)
			if err != nil {
				return fmt.Errorf("%s: %w", format, err)
			}
			key, err := c.store.Write(gctx, artifactKey(id, format), payload)
			if err != nil {
				return fmt.Errorf("%s: %w", format, err)
			}
			c.metrics.ArtifactWritten(string(format))
			artMu.Lock()
			artifacts[format] = key
			done++
			progress := 70 + 25*done/len(job.Formats)
			artMu.Unlock()
			c.setProgress(id, progress, fmt.Sprintf("exported %s", format))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// All-or-nothing: artifacts of formats that finished first are not
		// exposed after a later failure.
		if rmErr := c.store.RemoveAll(outputPrefix(id)); rmErr != nil {
			c.logger.Warn().Err(rmErr).Str("job_id", id).Msg("partial artifact removal failed")
		}
		c.fail(id, fmt.Errorf("%w: %v", domain.ErrExport, err))
		return
	}
	c.metrics.ObserveStage("export", time.Since(start))

	finished := c.update(id, func(j *domain.ConversionJob) {
		j.State = domain.JobStateCompleted
		j.Progress = 100
		j.Message = fmt.Sprintf("conversion completed, %d files ready", len(artifacts))
		j.Artifacts = artifacts
	})
	if !finished {
		// Cleaned up while exporting: discard everything written.
		if err := c.store.RemoveAll(outputPrefix(id)); err != nil {
			c.logger.Warn().Err(err).Str("job_id", id).Msg("orphan artifact removal failed")
		}
		return
	}
	c.metrics.ConversionCompleted()
	c.logger.Info().
		Str("job_id", id).
		Int("triangles", len(surface.Triangles)).
		Int("formats", len(artifacts)).
		Msg("conversion completed")
}

// update mutates the job under the lock. It reports false when the record no
// longer exists.
func (c *Coordinator) update(id string, fn func(*domain.ConversionJob)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return true
}

func (c *Coordinator) setStage(id string, state domain.JobState, progress int, message string) bool {
	return c.update(id, func(j *domain.ConversionJob) {
		j.State = state
		if progress > j.Progress {
			j.Progress = progress
		}
		j.Message = message
	})
}

// setProgress raises progress monotonically; it never moves backwards even
// when stage goroutines report out of order.
func (c *Coordinator) setProgress(id string, progress int, message string) {
	c.update(id, func(j *domain.ConversionJob) {
		if progress > 100 {
			progress = 100
		}
		if progress > j.Progress {
			j.Progress = progress
		}
		j.Message = message
	})
}

func (c *Coordinator) fail(id string, err error) {
	recorded := c.update(id, func(j *domain.ConversionJob) {
		j.State = domain.JobStateError
		j.Message = err.Error()
		j.ErrorMessage = err.Error()
	})
	if recorded {
		c.metrics.ConversionFailed()
		c.logger.Error().Err(err).Str("job_id", id).Msg("conversion failed")
	}
}

// sweep removes expired jobs so disk usage stays bounded when callers never
// clean up. Retention is best-effort, not a correctness contract.
func (c *Coordinator) sweep() {
	interval := c.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweepExpired(time.Now())
		}
	}
}

func (c *Coordinator) sweepExpired(now time.Time) {
	c.mu.RLock()
	var expired []string
	for id, j := range c.jobs {
		age := now.Sub(j.UpdatedAt)
		if (j.State.Terminal() && age > c.ttl) || age > 4*c.ttl {
			expired = append(expired, id)
		}
	}
	c.mu.RUnlock()
	for _, id := range expired {
		c.logger.Info().Str("job_id", id).Msg("retention sweep expiring job")
		if err := c.Cleanup(id); err != nil {
			c.logger.Warn().Err(err).Str("job_id", id).Msg("sweep cleanup failed")
		}
	}
}

func uploadKey(id string) string {
	return "uploads/" + id + ".ply"
}

func outputPrefix(id string) string {
	return "outputs/" + id
}

func artifactKey(id string, format domain.OutputFormat) string {
	return fmt.Sprintf("%s/%s.%s", outputPrefix(id), id, export.FileExtension(format))
}
