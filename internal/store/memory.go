package store

import (
	"context"
	"sync"

	"github.com/anvil-build/anvil/internal/core"
)

// MemoryDB is an in-process core.BuildDB, used by the core package's
// own tests and by the harness so they don't need a filesystem.
type MemoryDB struct {
	mu            sync.Mutex
	results       map[core.Key]core.RuleResult
	iteration     uint64
	schemaVersion int
}

// NewMemoryDB returns an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{results: make(map[core.Key]core.RuleResult)}
}

func (m *MemoryDB) LookupRuleResult(ctx context.Context, key core.Key) (core.RuleResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[key]
	if !ok {
		return core.RuleResult{}, false, nil
	}
	return core.RuleResult{
		Value:        result.Value.Clone(),
		BuiltAt:      result.BuiltAt,
		ComputedAt:   result.ComputedAt,
		Dependencies: result.Dependencies.Clone(),
	}, true, nil
}

func (m *MemoryDB) SetRuleResult(ctx context.Context, key core.Key, result core.RuleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key] = core.RuleResult{
		Value:        result.Value.Clone(),
		BuiltAt:      result.BuiltAt,
		ComputedAt:   result.ComputedAt,
		Dependencies: result.Dependencies.Clone(),
	}
	return nil
}

func (m *MemoryDB) GetCurrentIteration(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iteration, nil
}

func (m *MemoryDB) SetCurrentIteration(ctx context.Context, iteration uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iteration = iteration
	return nil
}

func (m *MemoryDB) SchemaVersion(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schemaVersion, nil
}

func (m *MemoryDB) SetSchemaVersion(ctx context.Context, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaVersion = version
	return nil
}

func (m *MemoryDB) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[core.Key]core.RuleResult)
	m.iteration = 0
	return nil
}

func (m *MemoryDB) Close() error {
	return nil
}

var _ core.BuildDB = (*MemoryDB)(nil)
