// Package workqueue implements the core.ExecutionQueue contract with a
// fixed-size goroutine pool.
package workqueue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anvil-build/anvil/internal/core"
)

// Queue is a worker-pool ExecutionQueue. Jobs are run in FIFO order
// relative to when a worker picks them up; with New(1) this degenerates
// to strictly serial execution, which is what the harness and the core
// tests rely on for deterministic output.
type Queue struct {
	jobs chan core.QueueJob
	ctx  context.Context

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New starts a Queue with the given number of worker goroutines. workers
// is clamped to at least 1.
func New(workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		jobs: make(chan core.QueueJob, 64),
		ctx:  context.Background(),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// NewSerial is New(1): every job runs to completion before the next
// starts, giving callers deterministic execution order across a build.
func NewSerial() *Queue {
	return New(1)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.runJob(job)
	}
}

// runJob runs one job with a panic backstop: a job is expected to
// recover its own panics (core.Engine's runCallback does), but a
// worker goroutine dying on an unrecovered panic would silently shrink
// the pool, so this is a last resort, not the primary reporting path.
func (q *Queue) runJob(job core.QueueJob) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("workqueue: job panicked", "key", job.Key, "panic", r)
		}
	}()
	job.Run(q.ctx)
}

// Enqueue implements core.ExecutionQueue. Enqueuing after Close is a
// no-op rather than a panic, since a task's background goroutine may
// outlive the build that created it.
func (q *Queue) Enqueue(job core.QueueJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs <- job
}

// Close implements core.ExecutionQueue: stops accepting new jobs and
// waits for every already-enqueued job to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}
