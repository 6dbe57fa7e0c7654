package runtime

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// resolveChoiceIndex interprets caller input as a non-negative choice index.
// Hosts deliver input in many shapes (ints from Go callers, float64 or json.Number
// from JSON, strings from a terminal), so all of them are accepted.
func resolveChoiceIndex(input any) (int, bool) {
	switch v := input.(type) {
	case nil:
		return 0, false
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}
