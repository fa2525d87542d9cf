// Package harness drives a rulespec graph through an Engine and
// records the resulting task lifecycle as a trace, for use in golden
// tests and scenario fixtures.
package harness

import "sync"

// TraceEvent is one observed step of a task's lifecycle during a
// recorded build.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"` // create_task, start, provide_value, inputs_available
	Key    string `json:"key"`
	Detail string `json:"detail,omitempty"`
}

// Recorder accumulates TraceEvents from however many rule wrappers
// feed into it concurrently; it is safe to share across every task a
// build creates.
type Recorder struct {
	mu     sync.Mutex
	seq    int64
	events []TraceEvent
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one event, stamping it with the next sequence number.
func (r *Recorder) Record(typ, key, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, TraceEvent{Seq: r.seq, Type: typ, Key: key, Detail: detail})
}

// Events returns a copy of the trace recorded so far, in sequence
// order.
func (r *Recorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
