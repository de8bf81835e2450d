package operator

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/macropower/rulesim/pkg/suggest"
)

// UnknownError returns an error wrapping [ErrUnknownOperator] for name,
// suggesting the closest of candidates.
func UnknownError(name string, candidates []string) error {
	return fmt.Errorf("%w: %s%s", ErrUnknownOperator, name, suggest.DidYouMean(name, candidates))
}

// Equal reports whether a and b are equal. Numbers of different Go types
// compare by value, so int64(1) equals float64(1). Composite values compare
// structurally.
func Equal(a, b any) bool {
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Comparable() && tb.Comparable() {
		return a == b
	}

	return reflect.DeepEqual(a, b)
}

// ToFloat converts any Go numeric value to float64. Strings, booleans and
// other values are not numbers.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	return 0, false
}

// numeric builds an operator that is false unless both operands are numbers.
func numeric(cmp func(a, b float64) bool) Func {
	return func(a, b any) (bool, error) {
		fa, ok := ToFloat(a)
		if !ok {
			return false, nil
		}

		fb, ok := ToFloat(b)
		if !ok {
			return false, nil
		}

		return cmp(fa, fb), nil
	}
}

// sequence returns the elements of v if it is a slice or array.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}

		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

func member(v any, items []any) bool {
	for _, item := range items {
		if Equal(v, item) {
			return true
		}
	}

	return false
}

// contains performs a substring match when a is a string, and a membership
// test when a is a sequence. The second return value is false when a is
// neither, or when a is a string but b is not.
func contains(a, b any) (bool, bool) {
	if s, ok := a.(string); ok {
		sub, ok := b.(string)
		if !ok {
			return false, false
		}

		return strings.Contains(s, sub), true
	}

	items, ok := sequence(a)
	if !ok {
		return false, false
	}

	return member(b, items), true
}
