package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vodsearch/internal/catalog"
	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/status"
	"vodsearch/internal/store"
)

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds fan-out parallelism within one job.
	Workers int

	// PollInterval is how often running jobs publish progress.
	PollInterval time.Duration
}

// running tracks one in-flight job's handles for cancellation.
type running struct {
	cancel context.CancelFunc
	group  *Group
	done   chan struct{}
}

// Orchestrator owns job lifecycle and collection metadata writes.
// Workers own only their own document write and unit outcome.
type Orchestrator struct {
	cfg    Config
	lister catalog.Lister
	worker *Worker
	status status.Store
	meta   *store.MetadataStore
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*running
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(cfg Config, lister catalog.Lister, worker *Worker, st status.Store, meta *store.MetadataStore, logger *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		lister: lister,
		worker: worker,
		status: st,
		meta:   meta,
		logger: logger,
		jobs:   make(map[string]*running),
	}
}

// Start accepts a new indexing job and returns its id immediately; the
// work runs in the background. At most one job per collection may be
// active; force revokes the current holder first.
func (o *Orchestrator) Start(ctx context.Context, collectionID, title string, incremental, force bool) (string, error) {
	if collectionID == "" {
		return "", vserrors.New(vserrors.ErrCodeInvalidInput, "collection id is required", nil)
	}

	jobID := uuid.NewString()

	holder, err := o.status.AcquireCollection(ctx, collectionID, jobID)
	if errors.Is(err, status.ErrConflict) {
		if !force {
			return "", vserrors.New(vserrors.ErrCodeJobConflict,
				fmt.Sprintf("collection %s already has an active job", collectionID), nil).
				WithDetail("job_id", holder)
		}
		if holder != "" {
			cerr := o.Cancel(ctx, holder)
			switch {
			case cerr == nil:
			case vserrors.GetCode(cerr) == vserrors.ErrCodeJobNotFound:
				// The lock outlived its job record (crashed or expired
				// holder). There is nothing to cancel; clear the lock.
				if rerr := o.status.ReleaseCollection(ctx, collectionID, holder); rerr != nil {
					return "", rerr
				}
			default:
				return "", cerr
			}
		}
		holder, err = o.status.AcquireCollection(ctx, collectionID, jobID)
		if errors.Is(err, status.ErrConflict) {
			return "", vserrors.New(vserrors.ErrCodeJobConflict,
				fmt.Sprintf("collection %s already has an active job", collectionID), nil).
				WithDetail("job_id", holder)
		}
	}
	if err != nil && !errors.Is(err, status.ErrConflict) {
		if verr, ok := err.(*vserrors.Error); ok {
			return "", verr
		}
		return "", vserrors.New(vserrors.ErrCodeStatusStore, "failed to acquire collection", err)
	}

	now := time.Now()
	job := &status.Job{
		ID:           jobID,
		CollectionID: collectionID,
		State:        status.StateQueued,
		Title:        title,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.status.SaveJob(ctx, job); err != nil {
		_ = o.status.ReleaseCollection(ctx, collectionID, jobID)
		return "", err
	}

	// The job outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &running{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.jobs[jobID] = r
	o.mu.Unlock()

	go o.run(runCtx, job, incremental, r)

	return jobID, nil
}

// GetStatus returns the current job record.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*status.Job, error) {
	job, err := o.status.GetJob(ctx, jobID)
	if errors.Is(err, status.ErrNotFound) {
		return nil, vserrors.New(vserrors.ErrCodeJobNotFound,
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	return job, err
}

// Cancel revokes a queued or running job: the coordinating goroutine and
// every child unit are stopped, the job record is deleted, and the
// collection lock is released so a new job can start immediately.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.status.GetJob(ctx, jobID)
	if errors.Is(err, status.ErrNotFound) {
		return vserrors.New(vserrors.ErrCodeJobNotFound,
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if err != nil {
		return err
	}
	if job.Terminal() {
		return vserrors.New(vserrors.ErrCodeNotCancellable,
			fmt.Sprintf("job %s is %s", jobID, job.State), nil)
	}

	o.mu.Lock()
	r := o.jobs[jobID]
	delete(o.jobs, jobID)
	o.mu.Unlock()

	if r != nil {
		r.cancel()
		if r.group != nil {
			r.group.Cancel()
		}
		<-r.done
	}

	if err := o.status.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	if err := o.status.ReleaseCollection(ctx, job.CollectionID, jobID); err != nil {
		return err
	}

	o.logger.Info("job_cancelled",
		slog.String("job_id", jobID),
		slog.String("collection_id", job.CollectionID))
	return nil
}

// Wait blocks until a job's background goroutine has exited. Used by the
// one-shot CLI and by tests; the HTTP surface polls GetStatus instead.
func (o *Orchestrator) Wait(jobID string) {
	o.mu.Lock()
	r := o.jobs[jobID]
	o.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

func (o *Orchestrator) run(ctx context.Context, job *status.Job, incremental bool, r *running) {
	defer close(r.done)
	defer func() {
		o.mu.Lock()
		delete(o.jobs, job.ID)
		o.mu.Unlock()
	}()

	logger := o.logger.With(
		slog.String("job_id", job.ID),
		slog.String("collection_id", job.CollectionID))

	job.State = status.StateRunning
	o.saveJob(ctx, job)

	items, err := o.lister.ListItems(ctx, job.CollectionID)
	if err != nil {
		o.failJob(ctx, job, err, logger)
		return
	}

	// An empty collection is a successful no-op run. No metadata record
	// is written; the collection was never indexed.
	if len(items) == 0 {
		job.State = status.StateCompleted
		o.saveJob(ctx, job)
		o.releaseLock(ctx, job)
		logger.Info("job_completed", slog.Int("total", 0))
		return
	}

	_, existing, err := o.worker.Indexes.EnsureIndex(ctx, job.CollectionID, !incremental)
	if err != nil {
		o.failJob(ctx, job, err, logger)
		return
	}

	toProcess := items
	if incremental {
		existingIDs, err := o.worker.Indexes.ExistingItemIDs(ctx, job.CollectionID)
		if err != nil {
			o.failJob(ctx, job, err, logger)
			return
		}
		toProcess = make([]catalog.Item, 0, len(items))
		for _, item := range items {
			if _, ok := existingIDs[item.ID]; ok {
				job.Skipped++
				continue
			}
			toProcess = append(toProcess, item)
		}
		// Documents still in the index but absent from this enumeration
		// remain indexed; they count toward the final tally.
		job.AlreadyIndexed = int(existing) - job.Skipped
		if job.AlreadyIndexed < 0 {
			job.AlreadyIndexed = 0
		}
	}

	job.Total = len(items)
	job.Progress = job.Skipped
	o.saveJob(ctx, job)

	logger.Info("job_dispatched",
		slog.Int("total", job.Total),
		slog.Int("skipped", job.Skipped),
		slog.Int("to_process", len(toProcess)))

	group := RunGroup(ctx, toProcess, func(ctx context.Context, item catalog.Item) Outcome {
		return o.worker.Process(ctx, job.CollectionID, item)
	}, o.cfg.Workers)

	o.mu.Lock()
	if reg, ok := o.jobs[job.ID]; ok {
		reg.group = group
	}
	o.mu.Unlock()

	job.GroupRef = group.ID
	o.saveJob(ctx, job)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			// Cancel owns the job record; nothing more to write.
			return
		case <-ticker.C:
			job.Progress = job.Skipped + group.Completed()
			o.saveJob(ctx, job)
		case <-group.Done():
			break poll
		}
	}

	if ctx.Err() != nil {
		return
	}

	job.Progress = job.Skipped + group.Completed()
	job.NewItems = group.Succeeded()
	job.IndexedItems = job.Skipped + job.AlreadyIndexed + job.NewItems

	if job.IndexedItems == 0 {
		o.failJob(ctx, job, vserrors.New(vserrors.ErrCodeNothingIndexed,
			"no items could be indexed", nil), logger)
		return
	}

	o.persistMeta(ctx, job, items, logger)

	job.State = status.StateCompleted
	o.saveJob(ctx, job)
	o.releaseLock(ctx, job)

	logger.Info("job_completed",
		slog.Int("total", job.Total),
		slog.Int("skipped", job.Skipped),
		slog.Int("new_items", job.NewItems),
		slog.Int("indexed_items", job.IndexedItems))
}

// persistMeta writes the collection metadata record at the end of a
// successful run. Thumbnail comes from the first enumerated item.
func (o *Orchestrator) persistMeta(ctx context.Context, job *status.Job, items []catalog.Item, logger *slog.Logger) {
	meta := &store.CollectionMeta{
		ID:                job.CollectionID,
		Title:             job.Title,
		DeclaredItemCount: len(items),
		IndexedItemCount:  job.IndexedItems,
		LastIndexedAt:     time.Now(),
	}
	if len(items) > 0 {
		meta.Thumbnail = items[0].Thumbnail
	}
	if err := o.meta.SaveCollection(ctx, meta); err != nil {
		logger.Warn("collection_meta_write_failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) failJob(ctx context.Context, job *status.Job, err error, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	job.State = status.StateFailed
	job.Error = err.Error()
	o.saveJob(ctx, job)
	o.releaseLock(ctx, job)
	logger.Error("job_failed", slog.String("error", err.Error()))
}

func (o *Orchestrator) saveJob(ctx context.Context, job *status.Job) {
	if ctx.Err() != nil {
		return
	}
	job.UpdatedAt = time.Now()
	if err := o.status.SaveJob(ctx, job); err != nil {
		o.logger.Warn("job_save_failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) releaseLock(ctx context.Context, job *status.Job) {
	if err := o.status.ReleaseCollection(ctx, job.CollectionID, job.ID); err != nil {
		o.logger.Warn("lock_release_failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}
