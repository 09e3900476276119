// Package queue provides the in-process priority job queue and its drain
// loop. Jobs from paid-tier users overtake the standard jobs waiting at
// enqueue time, but never other priority jobs; within a tier order is FIFO.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/silencecut/silencecut-api/internal/trim"
)

// Compile-time check that Queue satisfies the enqueue port.
var _ trim.Enqueuer = (*Queue)(nil)

// RunFunc executes one job to completion. The queue continues draining
// regardless of the outcome; failures are recorded on the job's status
// record by the run function itself.
type RunFunc func(ctx context.Context, job *trim.Job)

// Queue is the shared job sequence. It is the only in-memory structure
// mutated by concurrent request handlers, guarded by a single mutex.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	jobs    []*trim.Job
	active  int // running drain workers
	workers int // max concurrent workers

	run    RunFunc
	logger *slog.Logger

	// base context for background execution, detached from any request
	ctx context.Context
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent drain workers. The external
// media tool is CPU/IO heavy, so this defaults to 1; queue semantics are
// unchanged for larger values.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New creates a Queue that executes jobs with run. The context bounds the
// lifetime of background execution and is detached from request contexts:
// an admitted upload runs to completion regardless of client presence.
func New(ctx context.Context, run RunFunc, opts ...Option) *Queue {
	q := &Queue{
		run:     run,
		workers: 1,
		logger:  slog.Default(),
		ctx:     ctx,
	}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a job to the sequence and starts a drain worker if one is
// not already running. Priority jobs are inserted after all existing
// priority jobs but before any standard job, so a burst of paid jobs can
// overtake waiting standard jobs at most once each and never reorders
// other paid jobs. Safe for concurrent use.
func (q *Queue) Enqueue(job *trim.Job) {
	q.mu.Lock()

	if job.Priority {
		pos := len(q.jobs)
		for i, j := range q.jobs {
			if !j.Priority {
				pos = i
				break
			}
		}
		q.jobs = append(q.jobs, nil)
		copy(q.jobs[pos+1:], q.jobs[pos:])
		q.jobs[pos] = job
	} else {
		q.jobs = append(q.jobs, job)
	}

	q.logger.Info("job enqueued",
		slog.String("job_id", job.ID),
		slog.Uint64("file_id", uint64(job.FileID)),
		slog.Bool("priority", job.Priority),
		slog.Int("queue_len", len(q.jobs)),
	)

	if q.active < q.workers {
		q.active++
		go q.drain()
	}
	q.mu.Unlock()
}

// drain removes the head job and executes it synchronously, repeating
// until the sequence is empty. A job's failure never aborts the loop.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.active--
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		// Discard the head immediately; only the status record persists.
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.run(q.ctx, job)
	}
}

// Len returns the number of queued jobs, excluding any job currently
// executing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot returns the queued jobs in drain order.
func (q *Queue) Snapshot() []*trim.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*trim.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Wait blocks until the queue is empty and no worker is running.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.active > 0 || len(q.jobs) > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}
