package core_test

import (
	"context"
	"testing"

	"github.com/anvil-build/anvil/internal/core"
)

// sourceRule models an external input whose freshness is reconfirmed
// every build by comparing the live value against the recorded one
// (the way a real rule would stat a file and compare mtimes), rather
// than always or never rerunning.
type sourceRule struct {
	key   core.Key
	value core.Value
	log   *runLog
}

func (r *sourceRule) Key() core.Key { return r.key }

func (r *sourceRule) IsResultValid(prior core.Value) bool {
	return prior.Equal(r.value)
}

func (r *sourceRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &leafTask{value: r.value}
}

// discoveringRule completes with a fixed value, then reports dep as a
// post-hoc discovered dependency from InputsAvailable rather than
// requesting it up front via Start.
type discoveringRule struct {
	key   core.Key
	dep   core.Key
	value core.Value
	log   *runLog
}

func (r *discoveringRule) Key() core.Key                        { return r.key }
func (r *discoveringRule) IsResultValid(prior core.Value) bool { return true }

func (r *discoveringRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &discoveringTask{dep: r.dep, value: r.value}
}

type discoveringTask struct {
	dep   core.Key
	value core.Value
}

func (t *discoveringTask) Start(core.TaskInterface) {}

func (t *discoveringTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}

func (t *discoveringTask) InputsAvailable(ti core.TaskInterface) {
	ti.DiscoveredDependency(t.dep)
	ti.Complete(t.value)
}

// TestDiscoveredDependencyCausesRerunOnChange covers spec scenario S4:
// a dependency reported only via DiscoveredDependency still causes a
// rerun on a later build once the discovered key's own value changes,
// and is still skipped when it hasn't.
func TestDiscoveredDependencyCausesRerunOnChange(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	y := &sourceRule{key: "y", value: core.Value("y1"), log: log}
	if err := eng.AddRule(y); err != nil {
		t.Fatalf("AddRule y: %v", err)
	}
	if err := eng.AddRule(&discoveringRule{key: "x", dep: "y", value: core.Value("x"), log: log}); err != nil {
		t.Fatalf("AddRule x: %v", err)
	}

	ctx := context.Background()
	if _, err := eng.Build(ctx, "x"); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if !log.contains("x") || !log.contains("y") {
		t.Fatalf("expected both x and y to run on first build: %v", log.snapshot())
	}

	log.reset()
	if _, err := eng.Build(ctx, "x"); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if len(log.snapshot()) != 0 {
		t.Fatalf("expected no rerun when the discovered dependency is unchanged, got %v", log.snapshot())
	}

	y.value = core.Value("y2")
	log.reset()
	if _, err := eng.Build(ctx, "x"); err != nil {
		t.Fatalf("third Build: %v", err)
	}
	if !log.contains("y") {
		t.Fatalf("expected y to rerun once its value changed: %v", log.snapshot())
	}
	if !log.contains("x") {
		t.Fatalf("expected x to rerun because its discovered dependency y changed, even though x never called Request(y): %v", log.snapshot())
	}
}
