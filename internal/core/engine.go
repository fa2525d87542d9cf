package core

import (
	"context"
	"sync"
)

// Engine is the incremental dependency engine: a registry of Rules, a
// memoization table of RuleInfo records, and a single coordinator that
// drives builds to completion.
//
// All exported Engine methods except the TaskInterface callbacks
// (Request, MustFollow, DiscoveredDependency, Complete) must be called
// from outside any task callback. The TaskInterface callbacks are safe
// to call from any goroutine; everything else they touch is funneled
// through a mailbox so the coordinator remains the sole mutator of
// rule and cycle state.
type Engine struct {
	delegate Delegate
	queue    ExecutionQueue
	iter     *iterationCounter

	rules map[Key]Rule
	infos map[Key]*RuleInfo

	db BuildDB

	// buildMu serializes top-level Build calls: the coordinator only
	// ever runs on one goroutine at a time.
	buildMu sync.Mutex

	// Per-build state, reset at the top of Build.
	ctx             context.Context
	currentIteration uint64
	cycleGraph      *cycleDetector
	mailbox         *mailbox
	rootResult      Value
	rootDone        bool
	fatalErr        error

	closed bool
}

// New creates an Engine backed by delegate. The delegate's execution
// queue is created immediately and reused for every subsequent build.
func New(delegate Delegate) *Engine {
	e := &Engine{
		delegate: delegate,
		rules:    make(map[Key]Rule),
		infos:    make(map[Key]*RuleInfo),
		iter:     newIterationCounter(0),
	}
	e.queue = delegate.CreateExecutionQueue()
	return e
}

// AddRule registers rule under its own key. Registering a second rule
// for a key already registered is a configuration error.
func (e *Engine) AddRule(rule Rule) error {
	key := rule.Key()
	if _, ok := e.rules[key]; ok {
		return newConfigError("duplicate rule registration for key " + string(key))
	}
	e.rules[key] = rule
	return nil
}

// AttachDB wires a persistence backend into the engine. schemaVersion
// is the version the caller expects the database to hold; if the
// stored version differs and recreateUnmatchedVersion is false,
// AttachDB fails rather than silently discarding results.
func (e *Engine) AttachDB(ctx context.Context, db BuildDB, schemaVersion int, recreateUnmatchedVersion bool) error {
	stored, err := db.SchemaVersion(ctx)
	if err != nil {
		return newDatabaseError("", err)
	}
	if stored != schemaVersion {
		if !recreateUnmatchedVersion {
			return newConfigError("database schema version mismatch and recreation not permitted")
		}
		if err := db.Reset(ctx); err != nil {
			return newDatabaseError("", err)
		}
		if err := db.SetSchemaVersion(ctx, schemaVersion); err != nil {
			return newDatabaseError("", err)
		}
	}

	start, err := db.GetCurrentIteration(ctx)
	if err != nil {
		return newDatabaseError("", err)
	}
	e.db = db
	e.iter = newIterationCounter(start)
	return nil
}

// Close releases the engine's execution queue and attached database.
// The engine must not be used afterward.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.queue != nil {
		e.queue.Close()
	}
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Build computes key's current value and returns it. It runs the task
// of key and of every rule that a running task requests or that a
// validity scan finds stale (see scanner.go).
// Build blocks the calling goroutine until the build completes, fails,
// or ctx is canceled.
func (e *Engine) Build(ctx context.Context, key Key) (Value, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	e.ctx = ctx
	e.currentIteration = e.iter.next()
	e.cycleGraph = newCycleDetector()
	e.mailbox = newMailbox()
	e.rootResult = nil
	e.rootDone = false
	e.fatalErr = nil

	if err := e.demand(key, rootWaiter{}); err != nil {
		e.fail(err)
	}

	for !e.rootDone && e.fatalErr == nil {
		msg, ok := e.mailbox.next(ctx)
		if !ok {
			return nil, ctx.Err()
		}
		e.handle(msg)
	}

	if e.fatalErr != nil {
		return nil, e.fatalErr
	}

	if e.db != nil {
		if err := e.db.SetCurrentIteration(ctx, e.currentIteration); err != nil {
			return nil, newDatabaseError(key, err)
		}
	}
	return e.rootResult, nil
}

// handle processes one mailbox message on the coordinator goroutine.
func (e *Engine) handle(msg any) {
	switch m := msg.(type) {
	case msgRequest:
		e.handleRequest(m)
	case msgMustFollow:
		e.handleMustFollow(m)
	case msgComplete:
		e.handleComplete(m.task, m.value)
	case msgCallbackDone:
		m.task.mu.Lock()
		m.task.callbackActive = false
		m.task.mu.Unlock()
		e.tryAdvance(m.task)
	case msgTaskPanic:
		e.fail(newTaskPanicError(m.key, m.recovered))
	}
}

func (e *Engine) handleRequest(m msgRequest) {
	owner := m.task.rule.Rule.Key()
	if chain, cyclic := e.cycleGraph.addEdge(owner, m.key); cyclic {
		e.reportCycle(chain)
		return
	}
	if err := e.demand(m.key, inputWaiter{task: m.task, id: m.id}); err != nil {
		e.fail(err)
	}
}

func (e *Engine) handleMustFollow(m msgMustFollow) {
	owner := m.task.rule.Rule.Key()
	if chain, cyclic := e.cycleGraph.addEdge(owner, m.key); cyclic {
		e.reportCycle(chain)
		return
	}
	if err := e.demand(m.key, followWaiter{task: m.task}); err != nil {
		e.fail(err)
	}
}

func (e *Engine) handleComplete(ti *TaskInfo, value Value) {
	ti.mu.Lock()
	if ti.completed {
		ti.mu.Unlock()
		return
	}
	ti.completed = true
	requested := ti.requested
	discovered := ti.discovered
	ti.mu.Unlock()

	var deps KeyList
	for _, p := range requested {
		deps, _ = deps.appendUnique(p.key)
	}
	for _, k := range discovered {
		deps, _ = deps.appendUnique(k)
	}

	info := ti.rule
	info.Value = value.Clone()
	info.HasValue = true
	info.BuiltAt = e.currentIteration
	info.ComputedAt = e.currentIteration
	info.Dependencies = deps
	info.State = StateIsComplete
	info.Pending = nil

	if e.db != nil {
		err := e.db.SetRuleResult(e.ctx, info.Rule.Key(), RuleResult{
			Value:        info.Value,
			BuiltAt:      info.BuiltAt,
			ComputedAt:   info.ComputedAt,
			Dependencies: deps,
		})
		if err != nil {
			e.fail(newDatabaseError(info.Rule.Key(), err))
			return
		}
	}

	e.resolveWaiters(info)
}

func (e *Engine) resolveWaiters(info *RuleInfo) {
	waiters := info.waiters
	info.waiters = nil
	for _, w := range waiters {
		w.deliver(e, info)
	}
}

func (e *Engine) reportCycle(chain []Key) {
	e.delegate.CycleDetected(chain)
	e.fatalErr = newCycleError(chain)
}

func (e *Engine) fail(err error) {
	if e.fatalErr == nil {
		e.fatalErr = err
	}
	if ee, ok := err.(*EngineError); ok && (ee.Code == ErrCodeDatabase || ee.Code == ErrCodeLookupFailed || ee.Code == ErrCodeTaskPanic) {
		e.delegate.Error(ee.Error())
	}
}

// runCallback dispatches fn as the one callback currently allowed to
// run for ti, through the execution queue, and reports completion back
// to the coordinator via the mailbox regardless of which goroutine the
// queue chose to run it on. A panicking callback is recovered and
// reported as a fatal Delegate.Error instead of crashing the process.
func (e *Engine) runCallback(ti *TaskInfo, key Key, fn func(TaskInterface)) {
	e.queue.Enqueue(QueueJob{
		Key: key,
		Run: func(ctx context.Context) {
			panicked := true
			defer func() {
				if panicked {
					if r := recover(); r != nil {
						e.mailbox.post(msgTaskPanic{task: ti, key: key, recovered: r})
						return
					}
				}
				e.mailbox.post(msgCallbackDone{task: ti})
			}()
			fn(TaskInterface{info: ti, eng: e})
			panicked = false
		},
	})
}

// tryAdvance dispatches the next pending ProvideValue delivery, or
// InputsAvailable once every input is satisfied, for ti. Only ever
// runs on the coordinator goroutine.
func (e *Engine) tryAdvance(ti *TaskInfo) {
	ti.mu.Lock()
	if ti.callbackActive || ti.completed {
		ti.mu.Unlock()
		return
	}

	if len(ti.pendingDeliveries) > 0 {
		d := ti.pendingDeliveries[0]
		ti.pendingDeliveries = ti.pendingDeliveries[1:]
		ti.callbackActive = true
		ti.mu.Unlock()
		e.runCallback(ti, d.key, func(tih TaskInterface) {
			ti.task.ProvideValue(tih, d.id, d.key, d.value)
		})
		return
	}

	ready := ti.startDelivered && ti.outstanding == 0 && ti.pendingMustFollow == 0 && !ti.inputsAvailableDelivered
	if !ready {
		ti.mu.Unlock()
		return
	}
	ti.inputsAvailableDelivered = true
	ti.mu.Unlock()

	ti.rule.State = StateInProgressComputing
	e.runCallback(ti, ti.rule.Rule.Key(), func(tih TaskInterface) {
		ti.task.InputsAvailable(tih)
	})
}

// The taskXxx methods below are called by TaskInterface from any
// goroutine; they validate the programmer contract synchronously and
// otherwise only touch the calling TaskInfo's own mutex before handing
// off to the coordinator via the mailbox.

func (e *Engine) taskRequest(ti *TaskInfo, key Key, id InputID) {
	if id > MaxInputID {
		panic("core: InputID exceeds MaxInputID")
	}
	ti.mu.Lock()
	if !ti.callbackActive || ti.completed {
		ti.mu.Unlock()
		panic("core: Request called outside Start or ProvideValue")
	}
	if ti.seenInputIDs[id] {
		ti.mu.Unlock()
		panic("core: duplicate InputID requested")
	}
	ti.seenInputIDs[id] = true
	ti.outstanding++
	ti.requested = append(ti.requested, pendingInput{key: key, id: id})
	ti.mu.Unlock()

	e.mailbox.post(msgRequest{task: ti, key: key, id: id})
}

func (e *Engine) taskMustFollow(ti *TaskInfo, key Key) {
	ti.mu.Lock()
	if !ti.callbackActive || ti.completed {
		ti.mu.Unlock()
		panic("core: MustFollow called outside Start or ProvideValue")
	}
	ti.mustFollow = append(ti.mustFollow, key)
	ti.pendingMustFollow++
	ti.mu.Unlock()

	e.mailbox.post(msgMustFollow{task: ti, key: key})
}

func (e *Engine) taskDiscoveredDependency(ti *TaskInfo, key Key) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	if !ti.inputsAvailableDelivered {
		panic("core: DiscoveredDependency called before InputsAvailable")
	}
	ti.discovered, _ = ti.discovered.appendUnique(key)
}

func (e *Engine) taskComplete(ti *TaskInfo, value Value) {
	e.mailbox.post(msgComplete{task: ti, value: value.Clone()})
}
