package core_test

import (
	"context"
	"testing"

	"github.com/anvil-build/anvil/internal/core"
)

// followerRule must-follows target before completing; it reports no
// dependency value from it.
type followerRule struct {
	key    core.Key
	target core.Key
	log    *runLog
}

func (r *followerRule) Key() core.Key                        { return r.key }
func (r *followerRule) IsResultValid(prior core.Value) bool { return false }

func (r *followerRule) CreateTask() core.Task {
	r.log.record(r.key)
	return &followerTask{target: r.target}
}

type followerTask struct{ target core.Key }

func (t *followerTask) Start(ti core.TaskInterface)      { ti.MustFollow(t.target) }
func (t *followerTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}
func (t *followerTask) InputsAvailable(ti core.TaskInterface) { ti.Complete(core.Value("followed")) }

func TestMustFollowBuildsTarget(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	if err := eng.AddRule(&leafRule{key: "target", value: core.Value("t"), log: log}); err != nil {
		t.Fatalf("AddRule target: %v", err)
	}
	if err := eng.AddRule(&followerRule{key: "follower", target: "target", log: log}); err != nil {
		t.Fatalf("AddRule follower: %v", err)
	}

	got, err := eng.Build(context.Background(), "follower")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !got.Equal(core.Value("followed")) {
		t.Fatalf("Build returned %q, want %q", got, "followed")
	}
	if !log.contains("target") {
		t.Fatalf("expected MustFollow target to have been built: %v", log.snapshot())
	}
}

func TestMustFollowParticipatesInCycleDetection(t *testing.T) {
	log := &runLog{}
	delegate := newTestDelegate()
	eng := core.New(delegate)
	defer eng.Close()

	if err := eng.AddRule(&followerRule{key: "a", target: "b", log: log}); err != nil {
		t.Fatalf("AddRule a: %v", err)
	}
	if err := eng.AddRule(&cyclicRule{key: "b", other: "a", log: log}); err != nil {
		t.Fatalf("AddRule b: %v", err)
	}

	_, err := eng.Build(context.Background(), "a")
	if !core.IsCycleError(err) {
		t.Fatalf("expected a MustFollow edge to close a cycle, got %v", err)
	}
}
