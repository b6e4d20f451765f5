// Package queue registers analysis jobs and feeds them to a fixed pool of
// workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/fedutinova/speechcoach/internal/job"
	"github.com/fedutinova/speechcoach/internal/pipeline"
	"github.com/fedutinova/speechcoach/internal/store"
	"github.com/fedutinova/speechcoach/internal/validation"
	"github.com/google/uuid"
)

// Handler runs one claimed job. A non-nil error fails the job; the result
// is kept either way.
type Handler func(ctx context.Context, j *job.Job, progress pipeline.ProgressFunc) (*pipeline.Result, error)

// EvictFunc is called for every job removed by GarbageCollect.
type EvictFunc func(ctx context.Context, j *job.Job)

type Submission struct {
	OwnerID    string
	AudioRef   string
	Transcript string
	Metadata   map[string]string
}

var (
	errNotQueued = errors.New("job is not queued")
	errStale     = errors.New("stale update")
)

const (
	// popRetryDelay is the pause after a failed Pop.
	popRetryDelay = time.Second

	// writeAttempts bounds store writes on the claim and outcome paths.
	// The pause between attempts starts at writeRetryDelay and doubles.
	writeAttempts   = 4
	writeRetryDelay = 25 * time.Millisecond
)

type Dispatcher struct {
	store   store.Store
	source  Source
	onEvict EvictFunc
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

// WithEvictHook registers fn to run after a job is garbage collected.
func WithEvictHook(fn EvictFunc) Option {
	return func(d *Dispatcher) { d.onEvict = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(st store.Store, src Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{store: st, source: src, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit registers a queued job and hands its id to the FIFO. It returns
// before any analysis runs.
func (d *Dispatcher) Submit(ctx context.Context, sub Submission) (uuid.UUID, error) {
	err := validation.ValidateSubmission(validation.Submission{
		OwnerID:    sub.OwnerID,
		AudioRef:   sub.AudioRef,
		Transcript: sub.Transcript,
		Context:    sub.Metadata[job.MetaContext],
		Language:   sub.Metadata[job.MetaLanguage],
	})
	if err != nil {
		return uuid.Nil, err
	}

	j := &job.Job{
		ID:         uuid.New(),
		OwnerID:    sub.OwnerID,
		AudioRef:   sub.AudioRef,
		Transcript: sub.Transcript,
		Status:     job.StatusQueued,
		Metadata:   maps.Clone(sub.Metadata),
		CreatedAt:  d.now(),
	}
	if j.Metadata == nil {
		j.Metadata = map[string]string{}
	}

	if err := d.store.Create(ctx, j); err != nil {
		return uuid.Nil, fmt.Errorf("failed to store job: %w", err)
	}
	if err := d.source.Push(ctx, j.ID); err != nil {
		if delErr := d.store.Delete(context.WithoutCancel(ctx), j.ID); delErr != nil {
			slog.Error("failed to roll back unqueued job", "job_id", j.ID, "error", delErr)
		}
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	slog.Info("job submitted", "job_id", j.ID, "owner_id", j.OwnerID, "context", j.Context())
	return j.ID, nil
}

// Poll returns a snapshot of the job or common.ErrJobNotFound.
func (d *Dispatcher) Poll(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return d.store.Get(ctx, id)
}

// ListByOwner returns the owner's jobs, oldest first.
func (d *Dispatcher) ListByOwner(ctx context.Context, ownerID string) ([]*job.Job, error) {
	return d.store.ListByOwner(ctx, ownerID)
}

// Cancel moves a queued job to cancelled. It reports false when the job
// already left the queued state.
func (d *Dispatcher) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := d.store.Update(ctx, id, func(j *job.Job) error {
		if !job.CanTransition(j.Status, job.StatusCancelled) {
			return errNotQueued
		}
		now := d.now()
		j.Status = job.StatusCancelled
		j.CompletedAt = &now
		return nil
	})
	switch {
	case err == nil:
		slog.Info("job cancelled", "job_id", id)
		return true, nil
	case errors.Is(err, errNotQueued):
		return false, nil
	default:
		return false, err
	}
}

// GarbageCollect removes terminal jobs that finished more than maxAge ago.
// Queued and processing jobs are never removed.
func (d *Dispatcher) GarbageCollect(ctx context.Context, maxAge time.Duration) (int, error) {
	removed, err := d.store.DeleteTerminalBefore(ctx, d.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("garbage collect: %w", err)
	}
	if d.onEvict != nil {
		for _, j := range removed {
			d.onEvict(ctx, j)
		}
	}
	if len(removed) > 0 {
		slog.Info("garbage collected jobs", "count", len(removed), "max_age", maxAge)
	}
	return len(removed), nil
}

// Len is the number of ids waiting in the FIFO.
func (d *Dispatcher) Len() int {
	return d.source.Len()
}

// StartConsumers starts n workers. Each owns one job at a time from claim
// to terminal state. Cancelling ctx stops dequeuing; jobs already claimed
// run to completion.
func (d *Dispatcher) StartConsumers(ctx context.Context, n int, handler Handler) {
	if n <= 0 {
		n = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	ctx = d.runContext(ctx)

	for i := range n {
		d.wg.Add(1)
		go d.consume(ctx, i+1, handler)
	}
	slog.Info("Started queue consumers", "count", n)
}

// StartJanitor runs GarbageCollect every interval until ctx ends or the
// dispatcher closes.
func (d *Dispatcher) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	ctx = d.runContext(ctx)

	d.wg.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.GarbageCollect(ctx, maxAge); err != nil && ctx.Err() == nil {
					slog.Error("janitor run failed", "error", err)
				}
			}
		}
	})
}

// runContext derives the context shared by background goroutines. Callers
// hold d.mu.
func (d *Dispatcher) runContext(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	prev := d.cancel
	d.cancel = func() {
		cancel()
		if prev != nil {
			prev()
		}
	}
	return ctx
}

// Close stops dequeuing, waits for in-flight jobs and closes the source.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	if err := d.source.Close(); err != nil {
		return err
	}
	slog.Info("Dispatcher closed gracefully")
	return nil
}

func (d *Dispatcher) consume(ctx context.Context, workerID int, handler Handler) {
	defer d.wg.Done()

	for {
		id, err := d.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, common.ErrClosed) {
				slog.Debug("Consumer shutting down", "worker", workerID)
				return
			}
			slog.Error("Failed to pop job", "error", err, "worker", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(popRetryDelay):
			}
			continue
		}

		d.process(context.WithoutCancel(ctx), workerID, id, handler)
	}
}

func (d *Dispatcher) process(ctx context.Context, workerID int, id uuid.UUID, handler Handler) {
	claimed, err := d.updateWithRetry(ctx, id, func(j *job.Job) error {
		if !job.CanTransition(j.Status, job.StatusProcessing) {
			return errNotQueued
		}
		now := d.now()
		j.Status = job.StatusProcessing
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errNotQueued):
			slog.Debug("skipping job that is no longer queued", "job_id", id, "worker", workerID)
		case common.IsNotFound(err):
			slog.Warn("skipping unknown job", "job_id", id, "worker", workerID)
		default:
			// The job is still queued; put it back so another pop claims it.
			slog.Error("failed to claim job, requeueing", "job_id", id, "error", err, "worker", workerID)
			if pushErr := d.source.Push(ctx, id); pushErr != nil {
				slog.Error("failed to requeue job", "job_id", id, "error", pushErr, "worker", workerID)
			}
		}
		return
	}

	slog.Info("Processing job", "job_id", id, "worker", workerID)

	result, runErr := d.invoke(ctx, handler, claimed, func(p int) { d.setProgress(ctx, id, p) })

	final, err := d.updateWithRetry(ctx, id, func(j *job.Job) error {
		now := d.now()
		j.Result = result
		j.CompletedAt = &now
		if runErr != nil {
			j.Status = job.StatusFailed
			j.Error = runErr.Error()
			return nil
		}
		j.Status = job.StatusCompleted
		j.Progress = pipeline.ProgressDone
		j.Error = ""
		return nil
	})
	if err != nil && !common.IsNotFound(err) {
		// A large result may be what the store rejects. Fall back to a
		// record without it so the job still reaches a terminal state.
		slog.Error("failed to record job outcome", "job_id", id, "error", err, "worker", workerID)
		runErr = fmt.Errorf("%w: failed to record outcome: %v", common.ErrSystem, err)
		final, err = d.updateWithRetry(ctx, id, func(j *job.Job) error {
			now := d.now()
			j.Status = job.StatusFailed
			j.Error = runErr.Error()
			j.Result = nil
			j.CompletedAt = &now
			return nil
		})
	}
	if err != nil {
		slog.Error("job left without a terminal state", "job_id", id, "error", err, "worker", workerID)
		return
	}

	duration := final.CompletedAt.Sub(*final.StartedAt)
	if runErr != nil {
		slog.Error("job failed", "job_id", id, "err", runErr, "worker", workerID, "duration", duration)
		return
	}
	slog.Info("job done", "job_id", id, "worker", workerID, "duration", duration)
}

// updateWithRetry applies fn through the store, retrying failures that are
// not decisions made by fn itself.
func (d *Dispatcher) updateWithRetry(ctx context.Context, id uuid.UUID, fn store.UpdateFunc) (*job.Job, error) {
	delay := writeRetryDelay
	for attempt := 1; ; attempt++ {
		j, err := d.store.Update(ctx, id, fn)
		if err == nil || attempt == writeAttempts || !retryable(err) {
			return j, err
		}
		slog.Warn("store update failed, retrying", "job_id", id, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, errNotQueued), errors.Is(err, errStale), common.IsNotFound(err):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// invoke calls handler, turning a panic into a system error.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, j *job.Job, progress pipeline.ProgressFunc) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job handler panicked", "job_id", j.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: handler panicked: %v", common.ErrSystem, r)
		}
	}()
	return handler(ctx, j, progress)
}

// setProgress records p if it moves progress forward. Only completion sets
// 100.
func (d *Dispatcher) setProgress(ctx context.Context, id uuid.UUID, p int) {
	p = min(p, pipeline.ProgressDone-1)
	_, err := d.store.Update(ctx, id, func(j *job.Job) error {
		if j.Status != job.StatusProcessing || p <= j.Progress {
			return errStale
		}
		j.Progress = p
		return nil
	})
	if err != nil && !errors.Is(err, errStale) {
		slog.Warn("failed to update progress", "job_id", id, "progress", p, "error", err)
	}
}
