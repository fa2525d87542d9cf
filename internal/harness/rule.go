package harness

import (
	"fmt"

	"github.com/anvil-build/anvil/internal/core"
)

// Trace wraps every rule in rules with a decorator that reports each
// task lifecycle callback to rec, leaving build semantics untouched.
func Trace(rules map[core.Key]core.Rule, rec *Recorder) map[core.Key]core.Rule {
	traced := make(map[core.Key]core.Rule, len(rules))
	for key, rule := range rules {
		traced[key] = &tracedRule{inner: rule, rec: rec}
	}
	return traced
}

type tracedRule struct {
	inner core.Rule
	rec   *Recorder
}

func (r *tracedRule) Key() core.Key { return r.inner.Key() }

func (r *tracedRule) IsResultValid(prior core.Value) bool { return r.inner.IsResultValid(prior) }

func (r *tracedRule) CreateTask() core.Task {
	r.rec.Record("create_task", string(r.inner.Key()), "")
	return &tracedTask{inner: r.inner.CreateTask(), key: r.inner.Key(), rec: r.rec}
}

type tracedTask struct {
	inner core.Task
	key   core.Key
	rec   *Recorder
}

func (t *tracedTask) Start(ti core.TaskInterface) {
	t.rec.Record("start", string(t.key), "")
	t.inner.Start(ti)
}

func (t *tracedTask) ProvideValue(ti core.TaskInterface, id core.InputID, key core.Key, value core.Value) {
	t.rec.Record("provide_value", string(t.key), fmt.Sprintf("from=%s id=%d", key, id))
	t.inner.ProvideValue(ti, id, key, value)
}

func (t *tracedTask) InputsAvailable(ti core.TaskInterface) {
	t.rec.Record("inputs_available", string(t.key), "")
	t.inner.InputsAvailable(ti)
}

var _ core.Rule = (*tracedRule)(nil)
var _ core.Task = (*tracedTask)(nil)
