package domain

import (
	"encoding/json"
	"fmt"
)

// Variables maps a variable name to a scalar value (string, number or bool).
// There is no namespacing and no typing beyond that union.
type Variables map[string]any

// Clone returns a shallow copy. Values are scalars, so this is also a deep copy.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// IsScalar reports whether value belongs to the scalar union accepted as a variable.
func IsScalar(value any) bool {
	switch value.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// Normalize converts decoded JSON numbers to float64 so that values loaded from
// different sources compare the same way. Non-scalar values are rejected.
func (v Variables) Normalize() (Variables, error) {
	out := make(Variables, len(v))
	for k, val := range v {
		n, err := NormalizeScalar(val)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// NormalizeScalar maps json.Number onto float64 and validates the scalar union.
func NormalizeScalar(value any) (any, error) {
	if num, ok := value.(json.Number); ok {
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", num, err)
		}
		return f, nil
	}
	if !IsScalar(value) {
		return nil, fmt.Errorf("expected string, number or bool, got %T", value)
	}
	return value, nil
}
