// Package core implements the incremental dependency engine: the
// key/value model, rule registry, dependency scanner, cycle detector,
// and execution driver that together decide what to recompute on each
// build and memoize the results.
//
// The package knows nothing about files, compilers, or commands. It
// only knows about Keys, Values, Rules, and Tasks; callers supply all
// domain semantics through the Delegate, the Rule catalogue, and a
// BuildDB implementation (see package store).
package core
