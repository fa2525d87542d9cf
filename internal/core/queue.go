package core

import "context"

// QueueJob is one unit of work the engine hands to an ExecutionQueue:
// one task callback (Start, ProvideValue or InputsAvailable) that is
// ready to run.
type QueueJob struct {
	// Key names the rule this job computes, for diagnostics.
	Key Key

	// Run is invoked by the queue on a worker goroutine. It must
	// invoke exactly the task callback appropriate to why the job was
	// queued (engine-internal; ExecutionQueue implementations just
	// call Run).
	Run func(ctx context.Context)
}

// ExecutionQueue is the external scheduler the engine dispatches ready
// work to (§4.5, §6 of the spec). The engine is the only party that
// enqueues; an ExecutionQueue implementation owns how and where Run
// functions actually execute (goroutine pool, external job system,
// etc.) and must eventually invoke every enqueued job's Run exactly
// once, unless the queue is closed first.
type ExecutionQueue interface {
	// Enqueue schedules job to run. May be called from the
	// coordinator goroutine only.
	Enqueue(job QueueJob)

	// Close stops accepting new jobs and releases queue resources.
	// Jobs already enqueued should still be allowed to finish.
	Close()
}
