package core_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/anvil-build/anvil/internal/core"
)

// capturingRule completes immediately and stashes its TaskInterface so
// the test can probe contract violations from outside the callback
// window, on the test's own goroutine (safely recoverable, unlike a
// violation raised inside a worker goroutine).
type capturingRule struct {
	key      core.Key
	captured *core.TaskInterface
	log      *runLog
}

func (r *capturingRule) Key() core.Key                        { return r.key }
func (r *capturingRule) IsResultValid(prior core.Value) bool { return false }

func (r *capturingRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &capturingTask{captured: r.captured}
}

type capturingTask struct{ captured *core.TaskInterface }

func (t *capturingTask) Start(ti core.TaskInterface) {
	*t.captured = ti
	ti.Complete(core.Value("done"))
}
func (t *capturingTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}
func (t *capturingTask) InputsAvailable(core.TaskInterface)                                  {}

func TestRequestOutsideCallbackPanics(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	var captured core.TaskInterface
	if err := eng.AddRule(&capturingRule{key: "leaf", captured: &captured, log: log}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if _, err := eng.Build(context.Background(), "leaf"); err != nil {
		t.Fatalf("Build: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected Request called after the task completed to panic")
		}
	}()
	captured.Request("anything", 0)
}

func TestMustFollowOutsideCallbackPanics(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	var captured core.TaskInterface
	if err := eng.AddRule(&capturingRule{key: "leaf", captured: &captured, log: log}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if _, err := eng.Build(context.Background(), "leaf"); err != nil {
		t.Fatalf("Build: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected MustFollow called after the task completed to panic")
		}
	}()
	captured.MustFollow("anything")
}

// duplicateIDRule calls Request with the same InputID twice from within
// Start, recovering its own panic so the test stays crash-free while
// still observing that the engine enforces the contract.
type duplicateIDRule struct {
	key core.Key
	log *runLog
}

func (r *duplicateIDRule) Key() core.Key                        { return r.key }
func (r *duplicateIDRule) IsResultValid(prior core.Value) bool { return false }

func (r *duplicateIDRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &duplicateIDTask{}
}

type duplicateIDTask struct{}

func (t *duplicateIDTask) Start(ti core.TaskInterface) {
	defer func() {
		if r := recover(); r != nil {
			ti.Complete(core.Value(fmt.Sprintf("recovered: %v", r)))
		}
	}()
	ti.Request("dep", 5)
	ti.Request("dep", 5)
	ti.Complete(core.Value("no panic"))
}

func (t *duplicateIDTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}
func (t *duplicateIDTask) InputsAvailable(core.TaskInterface)                                  {}

func TestDuplicateInputIDPanics(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	if err := eng.AddRule(&leafRule{key: "dep", value: core.Value("d"), log: log}); err != nil {
		t.Fatalf("AddRule dep: %v", err)
	}
	if err := eng.AddRule(&duplicateIDRule{key: "dup", log: log}); err != nil {
		t.Fatalf("AddRule dup: %v", err)
	}

	got, err := eng.Build(context.Background(), "dup")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.Equal(core.Value("no panic")) {
		t.Fatal("expected requesting the same InputID twice to panic")
	}
}
