package harness

import (
	"bytes"
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/anvil-build/anvil/internal/core"
	"github.com/anvil-build/anvil/internal/rulespec"
	"github.com/anvil-build/anvil/internal/workqueue"
)

// Scenario is a declarative fixture: a graph plus the key to build.
// Scenarios are typically loaded from testdata YAML files and driven
// through RunWithGolden.
type Scenario struct {
	Name  string `yaml:"name"`
	Graph string `yaml:"graph"` // inline YAML graph document
	Build string `yaml:"build"` // key to build
}

// LoadScenario parses a scenario fixture document.
func LoadScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("harness: parse scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("harness: scenario has empty name")
	}
	if s.Build == "" {
		return nil, fmt.Errorf("harness: scenario %q has empty build key", s.Name)
	}
	return &s, nil
}

// Result is the outcome of running a Scenario: the built value, its
// trace, and any error encountered.
type Result struct {
	Value core.Value
	Trace []TraceEvent
	Err   error
}

// Run loads s's graph, registers a traced rule catalogue, and builds
// s.Build against it. Tasks are run one at a time (a serial execution
// queue) rather than through the catalogue's own worker pool, so the
// recorded trace has a single deterministic ordering to compare a
// golden file against.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	cat, err := rulespec.NewCatalogue([]byte(s.Graph))
	if err != nil {
		return nil, fmt.Errorf("harness: scenario %q: %w", s.Name, err)
	}

	rec := NewRecorder()
	traced := Trace(cat.Rules(), rec)
	delegate := &serialDelegate{Catalogue: cat}

	eng := core.New(delegate)
	defer eng.Close()
	for _, rule := range traced {
		if err := eng.AddRule(rule); err != nil {
			return nil, fmt.Errorf("harness: scenario %q: registering %q: %w", s.Name, rule.Key(), err)
		}
	}

	value, buildErr := eng.Build(ctx, core.Key(s.Build))
	return &Result{Value: value, Trace: rec.Events(), Err: buildErr}, nil
}

// serialDelegate overrides Catalogue's execution queue with a serial
// one, for reproducible traces; every other Delegate method defers to
// the embedded Catalogue.
type serialDelegate struct {
	*rulespec.Catalogue
}

func (d *serialDelegate) CreateExecutionQueue() core.ExecutionQueue {
	return workqueue.NewSerial()
}

var _ core.Delegate = (*serialDelegate)(nil)
