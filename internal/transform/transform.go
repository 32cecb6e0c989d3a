// Package transform interprets declarative field configs: mappings from
// canonical request field names to provider parameter paths, with defaults,
// numeric constraints, and optional transform functions. Providers are data;
// this interpreter is the only code that walks them.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrMissingRequiredField indicates a required canonical field was absent.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrOutOfRange indicates a numeric field violated its min/max constraint.
	ErrOutOfRange = errors.New("value out of range")
	// ErrConflictingPlacement indicates two rules wrote different values to
	// the same provider path.
	ErrConflictingPlacement = errors.New("conflicting placement")
)

// FieldRule maps one canonical field to one provider parameter.
type FieldRule struct {
	// ParamPath is the dotted provider path the value is placed at.
	// Missing intermediate objects are created.
	ParamPath string
	// Required fails the transform when the canonical field is absent and no
	// transform produces a value.
	Required bool
	// Default is used when the canonical field is absent. DefaultFn wins over
	// Default and receives the whole canonical body.
	Default   any
	DefaultFn func(body gjson.Result) any
	// Min/Max bound numeric values after transform.
	Min *float64
	Max *float64
	// Transform derives the provider value from the whole canonical body.
	// Returning nil omits the placement. Without a transform the canonical
	// field value is copied as-is.
	Transform func(body gjson.Result) (any, error)
}

// FieldConfig maps a canonical field name to its rules. More than one rule
// per key fans the field out to multiple provider parameters.
type FieldConfig map[string][]FieldRule

// Apply builds a provider body from the canonical body using cfg. Keys are
// processed in sorted order so output construction is deterministic.
func Apply(cfg FieldConfig, canonical []byte) ([]byte, error) {
	body := gjson.ParseBytes(canonical)
	out := []byte(`{}`)
	placed := map[string]string{}

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for i := range cfg[key] {
			rule := &cfg[key][i]
			value, ok, err := resolve(rule, key, body)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			if !ok {
				continue
			}
			if err := checkRange(rule, value); err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			out, err = place(out, rule.ParamPath, value, placed)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
		}
	}
	return out, nil
}

func resolve(rule *FieldRule, key string, body gjson.Result) (any, bool, error) {
	field := body.Get(key)

	if rule.Transform != nil {
		v, err := rule.Transform(body)
		if err != nil {
			return nil, false, err
		}
		if v == nil {
			if rule.Required && !field.Exists() {
				return nil, false, ErrMissingRequiredField
			}
			return nil, false, nil
		}
		return v, true, nil
	}

	if !field.Exists() {
		if rule.DefaultFn != nil {
			if v := rule.DefaultFn(body); v != nil {
				return v, true, nil
			}
		}
		if rule.Default != nil {
			return rule.Default, true, nil
		}
		if rule.Required {
			return nil, false, ErrMissingRequiredField
		}
		return nil, false, nil
	}
	return field.Value(), true, nil
}

func checkRange(rule *FieldRule, value any) error {
	if rule.Min == nil && rule.Max == nil {
		return nil
	}
	n, ok := asFloat(value)
	if !ok {
		return nil
	}
	if rule.Min != nil && n < *rule.Min {
		return fmt.Errorf("%w: %v < %v", ErrOutOfRange, n, *rule.Min)
	}
	if rule.Max != nil && n > *rule.Max {
		return fmt.Errorf("%w: %v > %v", ErrOutOfRange, n, *rule.Max)
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case *float64:
		if n != nil {
			return *n, true
		}
	case *int64:
		if n != nil {
			return float64(*n), true
		}
	}
	return 0, false
}

// place writes value at path, rejecting a second placement with a different
// value. Values are canonicalized through JSON so struct and map forms of
// the same value compare equal.
func place(out []byte, path string, value any, placed map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value for %q: %w", path, err)
	}
	if prev, ok := placed[path]; ok {
		if prev != string(encoded) {
			return nil, fmt.Errorf("%w: path %q", ErrConflictingPlacement, path)
		}
		return out, nil
	}
	placed[path] = string(encoded)
	out, err = sjson.SetRawBytes(out, path, encoded)
	if err != nil {
		return nil, fmt.Errorf("set %q: %w", path, err)
	}
	return out, nil
}
