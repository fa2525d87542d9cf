package core_test

import (
	"context"
	"testing"

	"github.com/anvil-build/anvil/internal/core"
)

// panickingRule's task panics from InputsAvailable instead of
// completing normally.
type panickingRule struct {
	key core.Key
	log *runLog
}

func (r *panickingRule) Key() core.Key                        { return r.key }
func (r *panickingRule) IsResultValid(prior core.Value) bool { return false }

func (r *panickingRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &panickingTask{}
}

type panickingTask struct{}

func (t *panickingTask) Start(ti core.TaskInterface)                                      {}
func (t *panickingTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}
func (t *panickingTask) InputsAvailable(core.TaskInterface) {
	panic("boom")
}

// TestPanickingTaskReportsErrorInsteadOfCrashing covers the expansion
// property that a task callback panic surfaces as a Delegate.Error and
// a failed Build, rather than crashing the process.
func TestPanickingTaskReportsErrorInsteadOfCrashing(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	if err := eng.AddRule(&panickingRule{key: "boom", log: log}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	_, err := eng.Build(context.Background(), "boom")
	if err == nil {
		t.Fatal("expected Build to report an error for a panicking task")
	}
	if !core.IsTaskPanicError(err) {
		t.Fatalf("expected a task panic error, got %v", err)
	}
	if len(delegate.errorsSnapshot()) != 1 {
		t.Fatalf("expected the panic to be reported via delegate.Error, got %v", delegate.errorsSnapshot())
	}
}
