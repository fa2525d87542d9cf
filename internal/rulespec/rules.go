package rulespec

import (
	"bytes"

	"github.com/anvil-build/anvil/internal/core"
)

// valueRule is a leaf rule with a fixed value. When unstable is set its
// result is never considered valid, so its task reruns on every build
// that demands it.
type valueRule struct {
	key      core.Key
	value    core.Value
	unstable bool
}

func (r *valueRule) Key() core.Key { return r.key }

func (r *valueRule) IsResultValid(core.Value) bool { return !r.unstable }

func (r *valueRule) CreateTask() core.Task {
	return &valueTask{value: r.value}
}

type valueTask struct{ value core.Value }

func (t *valueTask) Start(ti core.TaskInterface) { ti.Complete(t.value) }

func (t *valueTask) ProvideValue(core.TaskInterface, core.InputID, core.Key, core.Value) {}

func (t *valueTask) InputsAvailable(core.TaskInterface) {}

// derivedRule concatenates the values of its dependencies, in the order
// listed, separated by a single space.
type derivedRule struct {
	key  core.Key
	deps []core.Key
}

func (r *derivedRule) Key() core.Key { return r.key }

func (r *derivedRule) IsResultValid(core.Value) bool { return true }

func (r *derivedRule) CreateTask() core.Task {
	values := make(map[core.Key]core.Value, len(r.deps))
	return &derivedTask{deps: r.deps, values: values}
}

type derivedTask struct {
	deps   []core.Key
	values map[core.Key]core.Value
}

func (t *derivedTask) Start(ti core.TaskInterface) {
	for i, dep := range t.deps {
		ti.Request(dep, core.InputID(i))
	}
	if len(t.deps) == 0 {
		ti.Complete(core.Value(""))
	}
}

func (t *derivedTask) ProvideValue(ti core.TaskInterface, id core.InputID, key core.Key, value core.Value) {
	t.values[key] = value.Clone()
}

func (t *derivedTask) InputsAvailable(ti core.TaskInterface) {
	var buf bytes.Buffer
	for i, dep := range t.deps {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.Write(t.values[dep])
	}
	ti.Complete(core.Value(buf.Bytes()))
}
