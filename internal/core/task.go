package core

import "sync"

// InputID is an opaque tag a task supplies with each Request, used to
// correlate the eventual ProvideValue delivery back to the input that
// triggered it.
type InputID uintptr

// MaxInputID is the largest InputID a task may use. Values above it are
// reserved for the engine's own internal bookkeeping.
const MaxInputID InputID = 1<<63 - 1

// Task represents one activation of a Rule during one build. The
// engine invokes exactly the three callbacks below, in the order
// Start, (ProvideValue)*, InputsAvailable, and the task eventually
// calls TaskInterface.Complete.
type Task interface {
	// Start is the task's entry point. Implementations typically issue
	// their initial Request/MustFollow calls here.
	Start(ti TaskInterface)

	// ProvideValue delivers one requested input's value. Calls arrive
	// in the order inputs complete, not necessarily the order they
	// were requested.
	ProvideValue(ti TaskInterface, id InputID, key Key, value Value)

	// InputsAvailable is delivered exactly once, after every input
	// requested during Start or ProvideValue has been provided. The
	// task may now perform its work and call ti.Complete.
	InputsAvailable(ti TaskInterface)
}

// TaskInterface is the handle a running task uses to interact with the
// engine. A TaskInterface is valid only for the TaskInfo it was issued
// for.
type TaskInterface struct {
	info *TaskInfo
	eng  *Engine
}

// Request declares that this task requires the value of key, tagged
// with id so the eventual ProvideValue delivery can be correlated.
//
// Must be called only from within Start or ProvideValue. Requesting the
// same id twice on one task, or using an id above MaxInputID, is an
// unchecked programmer error and panics.
func (ti TaskInterface) Request(key Key, id InputID) {
	ti.eng.taskRequest(ti.info, key, id)
}

// MustFollow declares an ordering constraint: this task must not
// complete until key's computation has completed. No value is
// delivered for a MustFollow edge.
//
// Must be called only from within Start or ProvideValue.
func (ti TaskInterface) MustFollow(key Key) {
	ti.eng.taskMustFollow(ti.info, key)
}

// DiscoveredDependency records a post-hoc input dependency found during
// execution (e.g. a compiler-emitted dependency file). May only be
// called after InputsAvailable has been delivered. Safe to call from
// any goroutine, but the caller must serialize calls for the same
// task.
func (ti TaskInterface) DiscoveredDependency(key Key) {
	ti.eng.taskDiscoveredDependency(ti.info, key)
}

// Complete finishes the task, supplying its output value. Safe to call
// from any goroutine.
func (ti TaskInterface) Complete(value Value) {
	ti.eng.taskComplete(ti.info, value)
}

// pendingInput is one outstanding Request this task is waiting on.
type pendingInput struct {
	key Key
	id  InputID
}

// TaskInfo is the engine's record of one active computation. It is
// created when the scanner decides a rule must run and destroyed once
// the task completes and its value has been recorded.
type TaskInfo struct {
	mu sync.Mutex

	task Task
	rule *RuleInfo

	// outstanding counts inputs that have been requested but not yet
	// provided.
	outstanding int

	// requested lists every input this task has asked for, in request
	// order, used to rebuild RuleInfo.Dependencies on completion.
	requested []pendingInput

	// seenInputIDs guards against a task requesting the same InputID
	// twice.
	seenInputIDs map[InputID]bool

	// mustFollow lists keys this task must not complete before.
	mustFollow []Key

	// discovered lists post-hoc dependencies reported via
	// DiscoveredDependency, in discovery order.
	discovered KeyList

	// startDelivered / inputsAvailableDelivered guard the callback
	// ordering guarantee (§5): each callback fires at most once and
	// only after its predecessor.
	startDelivered           bool
	inputsAvailableDelivered bool

	// pendingMustFollow counts must-follow targets not yet complete.
	pendingMustFollow int

	// completed is set once Complete has been processed, so a second
	// call is an unchecked no-op rather than a double free.
	completed bool

	// callbackActive is true exactly while one of this task's three
	// callbacks is executing, enforcing the "only one callback active
	// for a task at a time" guarantee (§5) even though callbacks run on
	// execution-queue worker goroutines. Only the coordinator flips
	// this field.
	callbackActive bool

	// pendingDeliveries queues ProvideValue deliveries that arrived
	// while a different callback for this task was active.
	pendingDeliveries []delivery
}

// delivery is one resolved input awaiting its ProvideValue callback.
type delivery struct {
	id    InputID
	key   Key
	value Value
}

func newTaskInfo(t Task, rule *RuleInfo) *TaskInfo {
	return &TaskInfo{
		task:         t,
		rule:         rule,
		seenInputIDs: make(map[InputID]bool),
	}
}
