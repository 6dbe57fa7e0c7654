package runtime

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

type scalarKind int

const (
	kindOther scalarKind = iota
	kindNumber
	kindString
	kindBool
)

// EvaluateCondition is the default ConditionEvaluator.
//
// eq and ne are strict: values of different scalar kinds are never equal, numbers
// compare by value regardless of their Go type. Relational operators compare two
// strings lexicographically and coerce anything else to a number (bools become 0/1,
// numeric strings are parsed, everything else is NaN and fails every comparison).
// A variable that is not set behaves as undefined: only ne holds.
func EvaluateCondition(cond *domain.Condition, vars domain.Variables) bool {
	if cond == nil {
		return true
	}

	actual, found := vars[cond.Variable]

	switch cond.Operator {
	case domain.OpEq:
		return found && strictEqual(actual, cond.Value)
	case domain.OpNe:
		return !found || !strictEqual(actual, cond.Value)
	case domain.OpGt, domain.OpLt, domain.OpGte, domain.OpLte:
		if !found {
			return false
		}
		return relational(cond.Operator, actual, cond.Value)
	default:
		return false
	}
}

func strictEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	case kindString, kindBool:
		return a == b
	default:
		return reflect.DeepEqual(a, b)
	}
}

func relational(op domain.Operator, a, b any) bool {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			c := strings.Compare(sa, sb)
			return compareResult(op, c < 0, c == 0, c > 0)
		}
	}

	fa, fb := coerceNumber(a), coerceNumber(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return false
	}
	return compareResult(op, fa < fb, fa == fb, fa > fb)
}

func compareResult(op domain.Operator, less, equal, greater bool) bool {
	switch op {
	case domain.OpGt:
		return greater
	case domain.OpLt:
		return less
	case domain.OpGte:
		return greater || equal
	case domain.OpLte:
		return less || equal
	}
	return false
}

func kindOf(v any) scalarKind {
	switch v.(type) {
	case string:
		return kindString
	case bool:
		return kindBool
	case json.Number:
		return kindNumber
	}
	if _, ok := toFloat(v); ok {
		return kindNumber
	}
	return kindOther
}

// toFloat converts any Go numeric kind (or json.Number) to float64.
func toFloat(v any) (float64, bool) {
	if num, ok := v.(json.Number); ok {
		f, err := num.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func coerceNumber(v any) float64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		// Looser than JS Number(): ParseFloat also takes "inf", "nan",
		// "0x1p4" hex floats and "1_000" underscores. "Infinity" parses in both.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return math.NaN()
}
