package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// snapshot is the canonical, JSON-serialized shape compared against a
// golden file: the scenario's trace and final value, but not its
// error (mismatched errors should fail loudly in the test itself, not
// silently diff in a golden file).
type snapshot struct {
	Name  string       `json:"name"`
	Value string       `json:"value"`
	Trace []TraceEvent `json:"trace"`
}

// RunWithGolden runs s and compares its trace and final value against
// testdata/golden/<s.Name>.golden, the way goldie.Assert does for any
// other fixture in this module. Run with `go test ./internal/harness
// -update` to (re)write the golden file.
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("harness: running scenario %q: %v", s.Name, err)
	}
	if result.Err != nil {
		t.Fatalf("harness: scenario %q failed to build: %v", s.Name, result.Err)
	}

	snap := snapshot{Name: s.Name, Value: string(result.Value), Trace: result.Trace}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("harness: marshaling snapshot for %q: %v", s.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)

	return result
}
