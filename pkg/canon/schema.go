package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RawObjective is one objective record as supplied to the loader.
type RawObjective map[string]any

const objectiveSchemaURL = "https://continuum.schemas.local/canon/objective.schema.json"

const objectiveSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["objective_id", "description", "priority", "scope", "preservation_class", "irreversibility_risk"],
  "properties": {
    "objective_id": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "priority": {"type": "integer", "minimum": 1},
    "scope": {"enum": ["civilization", "system", "humanity"]},
    "preservation_class": {"enum": ["non_negotiable", "critical", "important"]},
    "irreversibility_risk": {"type": "number", "minimum": 0, "maximum": 1},
    "success_signals": {"$ref": "#/$defs/signals"},
    "failure_signals": {"$ref": "#/$defs/signals"}
  },
  "$defs": {
    "signals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["signal_id"],
        "properties": {
          "signal_id": {"type": "string", "minLength": 1},
          "signal_type": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func objectiveValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(objectiveSchemaURL, strings.NewReader(objectiveSchema)); err != nil {
			schemaErr = fmt.Errorf("objective schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(objectiveSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("objective schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// parseObjectives validates each raw record against the objective schema and
// decodes it. The first invalid record aborts with a *SchemaError.
func parseObjectives(raw []RawObjective) ([]Objective, error) {
	if len(raw) == 0 {
		return nil, &SchemaError{Index: -1, Reason: ErrEmpty.Error()}
	}
	schema, err := objectiveValidator()
	if err != nil {
		return nil, err
	}

	out := make([]Objective, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, item := range raw {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, &SchemaError{Index: i, Reason: fmt.Sprintf("not serializable: %v", err)}
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, &SchemaError{Index: i, Reason: fmt.Sprintf("not valid JSON: %v", err)}
		}
		if err := schema.Validate(doc); err != nil {
			return nil, schemaError(i, err)
		}

		var o Objective
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, &SchemaError{Index: i, Reason: fmt.Sprintf("decode: %v", err)}
		}
		if _, dup := seen[o.ID]; dup {
			return nil, &SchemaError{Index: i, Location: "/objective_id", Reason: fmt.Sprintf("duplicate objective_id %q", o.ID)}
		}
		seen[o.ID] = struct{}{}
		for _, sig := range [][]SignalRef{o.SuccessSignals, o.FailureSignals} {
			for j := range sig {
				if sig[j].Type == "" {
					sig[j].Type = "unknown"
				}
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func schemaError(index int, err error) *SchemaError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &SchemaError{Index: index, Reason: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &SchemaError{Index: index, Location: ve.InstanceLocation, Reason: ve.Message}
}
