package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Args holds arguments after schema normalization. Integers are int64,
// numbers float64, arrays []any and objects map[string]any.
type Args map[string]any

// Has reports whether name was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Int returns an integer argument, or 0.
func (a Args) Int(name string) int64 {
	v, _ := a.OptionalInt(name)
	return v
}

// OptionalInt returns an integer argument and whether it was present.
func (a Args) OptionalInt(name string) (int64, bool) {
	v, ok := a[name].(int64)
	return v, ok
}

// String returns a string argument, or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Bool returns a boolean argument, or false.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Strings returns an array argument as strings, skipping non-strings.
func (a Args) Strings(name string) []string {
	items, _ := a[name].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object returns an object argument, or nil.
func (a Args) Object(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

// ParseArguments decodes the argument text of a tool call. Empty text is
// an empty object; anything that is not a single JSON object is
// ErrMalformedArguments.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if args == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedArguments)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedArguments)
	}
	return args, nil
}

// Normalize validates raw against the schema and returns typed Args.
// Missing required parameters and type mismatches are ErrInvalidArguments.
// Declared defaults fill missing optional parameters; undeclared parameters
// are dropped.
func (s ToolSchema) Normalize(raw map[string]any) (Args, error) {
	for _, name := range s.Required {
		if v, ok := raw[name]; !ok || v == nil {
			return nil, fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, name)
		}
	}

	args := make(Args, len(s.Properties))
	for name, prop := range s.Properties {
		v, ok := raw[name]
		if !ok || v == nil {
			if prop.Default != nil {
				args[name] = cloneDefault(prop.Default)
			}
			continue
		}
		coerced, err := coerce(prop, v)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrInvalidArguments, name, err)
		}
		args[name] = coerced
	}
	return args, nil
}

func coerce(prop Property, v any) (any, error) {
	out, err := coerceType(prop.Type, v)
	if err != nil {
		return nil, err
	}
	if prop.Type == TypeArray && prop.Items != nil {
		items := out.([]any)
		for i, it := range items {
			c, err := coerceType(prop.Items.Type, it)
			if err != nil {
				return nil, fmt.Errorf("item %d: %v", i, err)
			}
			items[i] = c
		}
	}
	if len(prop.Enum) > 0 && !inEnum(prop.Enum, out) {
		return nil, fmt.Errorf("value %v is not one of %v", out, prop.Enum)
	}
	return out, nil
}

func coerceType(typ string, v any) (any, error) {
	switch typ {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeInteger:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case TypeNumber:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeArray:
		switch arr := v.(type) {
		case []any:
			out := make([]any, len(arr))
			copy(out, arr)
			return out, nil
		case []string:
			out := make([]any, len(arr))
			for i, s := range arr {
				out[i] = s
			}
			return out, nil
		}
	case TypeObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("expected %s, got %s", typ, describe(v))
}

// toInt64 accepts integral JSON numbers and numeric strings, since models
// often quote ids.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func inEnum(enum []any, v any) bool {
	want := fmt.Sprint(v)
	for _, e := range enum {
		if fmt.Sprint(e) == want {
			return true
		}
	}
	return false
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("string %q", t)
	case json.Number, float64, int, int64:
		return fmt.Sprintf("number %v", t)
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func cloneDefault(v any) any {
	switch d := v.(type) {
	case []any:
		out := make([]any, len(d))
		copy(out, d)
		return out
	case []string:
		out := make([]any, len(d))
		for i, s := range d {
			out[i] = s
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(d))
		for k, val := range d {
			out[k] = val
		}
		return out
	case int:
		return int64(d)
	}
	return v
}
