package core

import "context"

// RuleResult is one persisted record of a rule's last computed state,
// as read from or written to a BuildDB.
type RuleResult struct {
	Value        Value
	BuiltAt      uint64
	ComputedAt   uint64
	Dependencies KeyList
}

// BuildDB is the persistence contract the engine relies on (§4.6 of the
// spec). It is an external collaborator: the engine only calls these
// methods, it never decides how or where they are durable.
//
// LookupRuleResult and SetRuleResult must be atomic per key: a reader
// observing a key never sees a partially written record.
type BuildDB interface {
	// LookupRuleResult returns the persisted record for key, or
	// ok == false if no record exists.
	LookupRuleResult(ctx context.Context, key Key) (result RuleResult, ok bool, err error)

	// SetRuleResult atomically stores (or replaces) the record for
	// key.
	SetRuleResult(ctx context.Context, key Key, result RuleResult) error

	// GetCurrentIteration returns the last iteration number flushed by
	// SetCurrentIteration, or 0 if none has been flushed yet.
	GetCurrentIteration(ctx context.Context) (uint64, error)

	// SetCurrentIteration persists the iteration counter. Called once,
	// at the successful completion of a build.
	SetCurrentIteration(ctx context.Context, iteration uint64) error

	// SchemaVersion returns the schema version last recorded via
	// SetSchemaVersion, or 0 if the database is fresh.
	SchemaVersion(ctx context.Context) (int, error)

	// SetSchemaVersion records the schema version the attaching client
	// expects this database to hold.
	SetSchemaVersion(ctx context.Context, version int) error

	// Reset discards every persisted rule result and resets the
	// iteration counter to 0. Used when AttachDB finds a stale schema
	// version and the caller allows recreation.
	Reset(ctx context.Context) error

	// Close releases any resources held by the database.
	Close() error
}
