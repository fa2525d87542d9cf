package rulespec

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// graphSchema constrains the shape LoadGraph accepts, independent of
// and ahead of the stricter, kind-specific checks LoadGraph itself
// applies afterward. It exists to give a malformed graph file a single
// clear error instead of a confusing YAML decode failure.
const graphSchema = `
nodes: [...{
	key: string & !=""
	kind: "static" | "derived" | "unstable"
	value?: string
	dependencies?: [...string]
}]
`

// ValidateCUE checks data (a YAML document) against graphSchema. YAML
// is decoded to a generic value and re-encoded as JSON, since CUE
// values are compiled from JSON/CUE syntax, not YAML.
func ValidateCUE(data []byte) error {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("decode yaml for schema check: %w", err)
	}
	jsonData, err := json.Marshal(normalize(generic))
	if err != nil {
		return fmt.Errorf("re-encode as json for schema check: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(graphSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema is invalid: %w", err)
	}

	value := ctx.CompileBytes(jsonData)
	if err := value.Err(); err != nil {
		return fmt.Errorf("graph document is not valid JSON/CUE: %w", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// normalize converts map[any]any produced by some YAML decodes into
// map[string]any so encoding/json can marshal it.
func normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
