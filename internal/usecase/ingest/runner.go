package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
)

// Job is one background ingestion run.
type Job struct {
	ID        string    `json:"id"`
	Params    Params    `json:"params"`
	StartedAt time.Time `json:"started_at"`

	progress *Progress
	cancel   context.CancelFunc
	done     chan struct{}
	summary  Summary
	err      error
}

// Progress returns the live progress snapshot.
func (j *Job) Progress() Snapshot { return j.progress.Snapshot() }

// Done is closed when the run finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Finished reports whether the run is over without blocking.
func (j *Job) Finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result waits for the run and returns its summary.
func (j *Job) Result() (Summary, error) {
	<-j.done
	return j.summary, j.err
}

// Cancel asks the run to stop at the next chunk boundary.
func (j *Job) Cancel() { j.cancel() }

// Runner executes at most one ingestion run at a time in the background.
type Runner struct {
	orch   *Orchestrator
	pool   *ants.Pool
	logger *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRunner creates a runner backed by a single-worker, non-blocking pool.
func NewRunner(orch *Orchestrator, logger *zap.Logger) (*Runner, error) {
	pool, err := ants.NewPool(1,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error("Ingestion job panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest pool: %w", err)
	}
	return &Runner{orch: orch, pool: pool, logger: logger, jobs: make(map[string]*Job)}, nil
}

// Start launches a run. It fails with domain.ErrIngestBusy while another run is active.
// The run stops at the next chunk boundary once parent is cancelled.
func (r *Runner) Start(parent context.Context, p Params) (*Job, error) {
	ctx, cancel := context.WithCancel(parent)
	job := &Job{
		ID:        uuid.NewString(),
		Params:    p,
		StartedAt: time.Now(),
		progress:  NewProgress(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	err := r.pool.Submit(func() {
		defer close(job.done)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				job.err = fmt.Errorf("ingestion job panicked: %v", rec)
				job.progress.update(func(s *Snapshot) {
					s.Status = StatusFailed
					s.LastMessage = job.err.Error()
				})
				r.logger.Error("Ingestion job panicked",
					zap.String("job_id", job.ID), zap.Any("panic", rec), zap.Stack("stacktrace"))
			}
		}()
		job.summary, job.err = r.orch.Run(ctx, p, job.progress)
	})
	if err != nil {
		cancel()
		if errors.Is(err, ants.ErrPoolOverload) {
			return nil, domain.ErrIngestBusy
		}
		return nil, fmt.Errorf("submit ingest job: %w", err)
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.logger.Info("Ingestion job started", zap.String("job_id", job.ID),
		zap.Int("start_offset", p.StartOffset), zap.Int("total", p.Total))
	return job, nil
}

// Get returns a job by id.
func (r *Runner) Get(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return job, nil
}

// Close cancels running jobs and waits up to timeout for the worker to exit.
func (r *Runner) Close(timeout time.Duration) error {
	r.mu.RLock()
	for _, j := range r.jobs {
		j.Cancel()
	}
	r.mu.RUnlock()
	return r.pool.ReleaseTimeout(timeout)
}
