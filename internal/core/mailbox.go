package core

import (
	"context"
	"sync"
)

// mailbox is the coordinator's inbox: every thread-safe entry point
// (Request, MustFollow, Complete, a callback finishing) posts a message
// here instead of mutating engine state directly. Only the coordinator
// goroutine ever drains it, which keeps Engine's rule tables and cycle
// graph single-writer.
type mailbox struct {
	mu     sync.Mutex
	q      []any
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) post(msg any) {
	m.mu.Lock()
	m.q = append(m.q, msg)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) tryPop() (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.q) == 0 {
		return nil, false
	}
	msg := m.q[0]
	m.q = m.q[1:]
	return msg, true
}

// next blocks until a message is available or ctx is done.
func (m *mailbox) next(ctx context.Context) (any, bool) {
	for {
		if msg, ok := m.tryPop(); ok {
			return msg, true
		}
		select {
		case <-m.signal:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Message types posted to the mailbox. Each names the thread-safe
// TaskInterface call (or internal event) that produced it.
type msgRequest struct {
	task *TaskInfo
	key  Key
	id   InputID
}

type msgMustFollow struct {
	task *TaskInfo
	key  Key
}

type msgComplete struct {
	task  *TaskInfo
	value Value
}

// msgCallbackDone signals that a task callback dispatched via
// runCallback has returned. Posted from whatever goroutine the
// execution queue ran it on.
type msgCallbackDone struct {
	task *TaskInfo
}

// msgTaskPanic signals that a task callback recovered from a panic
// instead of returning normally. Posted from whatever goroutine the
// execution queue ran it on.
type msgTaskPanic struct {
	task      *TaskInfo
	key       Key
	recovered any
}

// waiter is anything that wants to learn a RuleInfo's value once it is
// current for the build in progress.
type waiter interface {
	deliver(e *Engine, info *RuleInfo)
}

// rootWaiter is the synthetic waiter for a top-level Build call.
type rootWaiter struct{}

func (rootWaiter) deliver(e *Engine, info *RuleInfo) {
	e.rootResult = info.Value.Clone()
	e.rootDone = true
}

// inputWaiter resolves one Request made by a task.
type inputWaiter struct {
	task *TaskInfo
	id   InputID
}

func (w inputWaiter) deliver(e *Engine, info *RuleInfo) {
	ti := w.task
	ti.mu.Lock()
	ti.outstanding--
	ti.pendingDeliveries = append(ti.pendingDeliveries, delivery{id: w.id, key: info.Rule.Key(), value: info.Value})
	ti.mu.Unlock()
	e.tryAdvance(ti)
}

// followWaiter resolves one MustFollow made by a task: no value is
// delivered, only the ordering constraint is satisfied.
type followWaiter struct {
	task *TaskInfo
}

func (w followWaiter) deliver(e *Engine, info *RuleInfo) {
	ti := w.task
	ti.mu.Lock()
	ti.pendingMustFollow--
	ti.mu.Unlock()
	e.tryAdvance(ti)
}

// scanWaiter continues a validity scan that is demanding one of its
// rule's recorded dependencies.
type scanWaiter struct {
	forRule *RuleInfo
}

func (w scanWaiter) deliver(e *Engine, info *RuleInfo) {
	e.continueScanStep(w.forRule, info)
}
