// Package models contains domain models for promptvault.
package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// Note: every JSON column type implements sql.Scanner and driver.Valuer so the
// GORM layer can store it in a TEXT column on both SQLite and PostgreSQL.

// Variable describes one placeholder of a template prompt.
type Variable struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// Variables is an ordered list of template variables.
type Variables []Variable

// ExampleIO is a single input/output example attached to a prompt.
type ExampleIO struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ExampleIOs is an ordered list of examples.
type ExampleIOs []ExampleIO

// JSONStringArray is a []string stored as a JSON array.
type JSONStringArray []string

// JSONObject is an open string-keyed mapping stored as a JSON object.
type JSONObject map[string]any

// scanJSON decodes a TEXT/BLOB column into dst. NULL and empty values leave dst untouched.
func scanJSON(value any, dst any) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// valueJSON encodes v as a JSON string, or NULL when isNil.
func valueJSON(v any, isNil bool) (driver.Value, error) {
	if isNil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (v *Variables) Scan(value any) error { return scanJSON(value, v) }

// Value implements driver.Valuer.
func (v Variables) Value() (driver.Value, error) { return valueJSON([]Variable(v), v == nil) }

// Scan implements sql.Scanner.
func (e *ExampleIOs) Scan(value any) error { return scanJSON(value, e) }

// Value implements driver.Valuer.
func (e ExampleIOs) Value() (driver.Value, error) { return valueJSON([]ExampleIO(e), e == nil) }

// Scan implements sql.Scanner.
func (a *JSONStringArray) Scan(value any) error { return scanJSON(value, a) }

// Value implements driver.Valuer. A nil array is stored as "[]" so tag
// predicates never have to deal with NULL.
func (a JSONStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return valueJSON([]string(a), false)
}

// Scan implements sql.Scanner.
func (o *JSONObject) Scan(value any) error { return scanJSON(value, o) }

// Value implements driver.Valuer.
func (o JSONObject) Value() (driver.Value, error) { return valueJSON(map[string]any(o), o == nil) }

// Clone returns a deep-enough copy of the variables slice.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	out := make(Variables, len(v))
	copy(out, v)
	return out
}

// Clone returns a copy of the examples slice.
func (e ExampleIOs) Clone() ExampleIOs {
	if e == nil {
		return nil
	}
	out := make(ExampleIOs, len(e))
	copy(out, e)
	return out
}

// Clone returns a copy of the array.
func (a JSONStringArray) Clone() JSONStringArray {
	if a == nil {
		return nil
	}
	out := make(JSONStringArray, len(a))
	copy(out, a)
	return out
}

// Clone returns a copy of the object. Nested values are copied by
// re-encoding, which keeps snapshots independent of later mutations.
func (o JSONObject) Clone() JSONObject {
	if o == nil {
		return nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		out := make(JSONObject, len(o))
		for k, v := range o {
			out[k] = v
		}
		return out
	}
	var out JSONObject
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
