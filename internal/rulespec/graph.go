// Package rulespec loads a declarative graph of rules from YAML,
// validates it against a CUE schema, and turns it into core.Rule values
// an Engine can build against. It exists so cmd/anvil and the harness
// have something concrete to build without hand-writing Go types for
// every demo graph.
package rulespec

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/anvil-build/anvil/internal/core"
)

// Kind distinguishes the three node shapes a graph file can describe.
type Kind string

const (
	// KindStatic is a leaf rule with a fixed value.
	KindStatic Kind = "static"
	// KindDerived concatenates the values of its dependencies, in the
	// order listed.
	KindDerived Kind = "derived"
	// KindUnstable behaves like KindStatic but never reuses a cached
	// value: its task always runs when demanded.
	KindUnstable Kind = "unstable"
)

// NodeSpec is one entry in a Graph's node list.
type NodeSpec struct {
	Key          string   `yaml:"key"`
	Kind         Kind     `yaml:"kind"`
	Value        string   `yaml:"value,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// Graph is the parsed form of a rule graph file.
type Graph struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

// LoadGraph parses and validates a rule graph document. Unknown fields
// are rejected so a typo in a graph file fails loudly instead of being
// silently ignored.
func LoadGraph(data []byte) (*Graph, error) {
	if err := ValidateCUE(data); err != nil {
		return nil, fmt.Errorf("rulespec: schema validation failed: %w", err)
	}

	var g Graph
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("rulespec: parse graph: %w", err)
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Key == "" {
			return nil, fmt.Errorf("rulespec: node with empty key")
		}
		if seen[n.Key] {
			return nil, fmt.Errorf("rulespec: duplicate node key %q", n.Key)
		}
		seen[n.Key] = true
		switch n.Kind {
		case KindStatic, KindUnstable:
			if len(n.Dependencies) != 0 {
				return nil, fmt.Errorf("rulespec: node %q is %s but lists dependencies", n.Key, n.Kind)
			}
		case KindDerived:
			if n.Value != "" {
				return nil, fmt.Errorf("rulespec: node %q is derived but sets value", n.Key)
			}
		default:
			return nil, fmt.Errorf("rulespec: node %q has unknown kind %q", n.Key, n.Kind)
		}
	}
	for _, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			if !seen[dep] {
				return nil, fmt.Errorf("rulespec: node %q depends on unknown key %q", n.Key, dep)
			}
		}
	}

	return &g, nil
}

// Rules builds a core.Rule for every node in the graph, keyed by the
// node's key. Keys the graph doesn't define have no entry.
func (g *Graph) Rules() map[core.Key]core.Rule {
	rules := make(map[core.Key]core.Rule, len(g.Nodes))
	for _, n := range g.Nodes {
		n := n
		key := core.Key(n.Key)
		switch n.Kind {
		case KindStatic:
			rules[key] = &valueRule{key: key, value: core.Value(n.Value)}
		case KindUnstable:
			rules[key] = &valueRule{key: key, value: core.Value(n.Value), unstable: true}
		case KindDerived:
			deps := make([]core.Key, len(n.Dependencies))
			for i, d := range n.Dependencies {
				deps[i] = core.Key(d)
			}
			rules[key] = &derivedRule{key: key, deps: deps}
		}
	}
	return rules
}
