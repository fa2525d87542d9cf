package core

// Delegate supplies the callbacks the engine needs from its embedder:
// dynamic rule resolution, cycle diagnostics, fatal-error reporting,
// and the execution queue to run tasks on.
type Delegate interface {
	// LookupRule resolves a key for which no rule has been registered.
	// The returned Rule must report the requested key. Returning an
	// error aborts the current build with ErrCodeLookupFailed.
	LookupRule(key Key) (Rule, error)

	// CycleDetected reports a dependency cycle found while scanning or
	// requesting inputs. chain lists the rules in traversal order,
	// starting from the rule whose request closed the cycle.
	CycleDetected(chain []Key)

	// Error reports a fatal condition (database I/O failure, etc.)
	// that aborts the current build.
	Error(message string)

	// CreateExecutionQueue returns the queue the engine should dispatch
	// ready tasks to. Called once, when the Engine is created.
	CreateExecutionQueue() ExecutionQueue
}
