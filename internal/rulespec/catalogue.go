package rulespec

import (
	"fmt"
	"log/slog"

	"github.com/anvil-build/anvil/internal/core"
	"github.com/anvil-build/anvil/internal/workqueue"
)

// Catalogue is a closed, graph-backed set of rules: every key the
// graph names has a rule; any other key is a lookup failure.
type Catalogue struct {
	graph *Graph
	rules map[core.Key]core.Rule
	cycles [][]core.Key
}

// NewCatalogue loads and validates a graph document and builds the
// rule set it describes.
func NewCatalogue(data []byte) (*Catalogue, error) {
	g, err := LoadGraph(data)
	if err != nil {
		return nil, err
	}
	return &Catalogue{graph: g, rules: g.Rules()}, nil
}

// Register adds every rule in the catalogue to eng.
func (c *Catalogue) Register(eng *core.Engine) error {
	for key, rule := range c.rules {
		if err := eng.AddRule(rule); err != nil {
			return fmt.Errorf("rulespec: registering %q: %w", key, err)
		}
	}
	return nil
}

// Keys lists every key the catalogue's graph defines, for CLI listing
// and inspection commands.
func (c *Catalogue) Keys() []core.Key {
	keys := make([]core.Key, 0, len(c.rules))
	for k := range c.rules {
		keys = append(keys, k)
	}
	return keys
}

// Rules returns the catalogue's key-to-rule map, for callers (such as
// the harness) that need to wrap or otherwise inspect each rule before
// registering it with an Engine.
func (c *Catalogue) Rules() map[core.Key]core.Rule {
	return c.rules
}

// LookupRule implements core.Delegate. A graph-backed catalogue is
// closed: every rule it will ever serve was registered up front, so
// any key reaching LookupRule was never defined in the graph.
func (c *Catalogue) LookupRule(key core.Key) (core.Rule, error) {
	if rule, ok := c.rules[key]; ok {
		return rule, nil
	}
	return nil, fmt.Errorf("rulespec: no node with key %q", key)
}

// CycleDetected implements core.Delegate, recording the chain in the
// catalogue and logging it with slog.
func (c *Catalogue) CycleDetected(chain []core.Key) {
	c.cycles = append(c.cycles, chain)
	slog.Error("dependency cycle detected", "chain", chain)
}

// Error implements core.Delegate.
func (c *Catalogue) Error(message string) {
	slog.Error("build failed", "reason", message)
}

// CreateExecutionQueue implements core.Delegate, handing the engine a
// small worker pool sized to the catalogue.
func (c *Catalogue) CreateExecutionQueue() core.ExecutionQueue {
	workers := len(c.rules)
	if workers < 1 {
		workers = 1
	}
	if workers > 8 {
		workers = 8
	}
	return workqueue.New(workers)
}

var _ core.Delegate = (*Catalogue)(nil)
