package core_test

import (
	"fmt"
	"sync"

	"github.com/anvil-build/anvil/internal/core"
	"github.com/anvil-build/anvil/internal/workqueue"
)

// runLog records the order in which rules' tasks were created, the one
// engine-visible signal that a rule actually ran rather than being
// confirmed current by the validity scan.
type runLog struct {
	mu    sync.Mutex
	order []core.Key
}

func (l *runLog) record(k core.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, k)
}

func (l *runLog) snapshot() []core.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Key, len(l.order))
	copy(out, l.order)
	return out
}

func (l *runLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = nil
}

func (l *runLog) contains(k core.Key) bool {
	for _, v := range l.snapshot() {
		if v == k {
			return true
		}
	}
	return false
}

// testDelegate is a minimal core.Delegate for tests: rules are always
// pre-registered (LookupRule is never expected to succeed), cycles and
// errors are recorded for assertions, and the execution queue is serial
// so test assertions about run order are deterministic.
type testDelegate struct {
	mu          sync.Mutex
	cycles      [][]core.Key
	errors      []string
	lookupRules map[core.Key]core.Rule
}

func newTestDelegate() *testDelegate {
	return &testDelegate{lookupRules: make(map[core.Key]core.Rule)}
}

func (d *testDelegate) LookupRule(key core.Key) (core.Rule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.lookupRules[key]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("no rule registered for %q", key)
}

func (d *testDelegate) CycleDetected(chain []core.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]core.Key, len(chain))
	copy(cp, chain)
	d.cycles = append(d.cycles, cp)
}

func (d *testDelegate) Error(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, message)
}

func (d *testDelegate) errorsSnapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]string, len(d.errors))
	copy(cp, d.errors)
	return cp
}

func (d *testDelegate) CreateExecutionQueue() core.ExecutionQueue {
	return workqueue.NewSerial()
}

// leafRule has no dependencies. If alwaysInvalid is true its task runs
// every time it is demanded; otherwise a previously computed value is
// reused once confirmed current.
type leafRule struct {
	key           core.Key
	value         core.Value
	alwaysInvalid bool
	log           *runLog
}

func (r *leafRule) Key() core.Key { return r.key }

func (r *leafRule) IsResultValid(prior core.Value) bool {
	return !r.alwaysInvalid
}

func (r *leafRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &leafTask{value: r.value}
}

type leafTask struct{ value core.Value }

func (t *leafTask) Start(ti core.TaskInterface)                                      { ti.Complete(t.value) }
func (t *leafTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}
func (t *leafTask) InputsAvailable(core.TaskInterface)                               {}

// staticRule requests a fixed list of dependencies, in order, and
// completes with the concatenation of their values once all arrive.
type staticRule struct {
	key  core.Key
	deps []core.Key
	log  *runLog
}

func (r *staticRule) Key() core.Key                        { return r.key }
func (r *staticRule) IsResultValid(prior core.Value) bool { return true }

func (r *staticRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &staticTask{deps: r.deps, values: make(map[core.InputID]core.Value)}
}

type staticTask struct {
	deps   []core.Key
	values map[core.InputID]core.Value
}

func (t *staticTask) Start(ti core.TaskInterface) {
	for i, dep := range t.deps {
		ti.Request(dep, core.InputID(i))
	}
}

func (t *staticTask) ProvideValue(ti core.TaskInterface, id core.InputID, key core.Key, value core.Value) {
	t.values[id] = value
}

func (t *staticTask) InputsAvailable(ti core.TaskInterface) {
	var out core.Value
	for i := range t.deps {
		out = append(out, t.values[core.InputID(i)]...)
	}
	ti.Complete(out)
}
