// Package operator implements the operator table used to compare resolved
// fact values against literal comparison values.
//
// Operators come in two tiers. Built-in operators are a closed, pure set
// that is always available. Custom operators are looked up in a [Lookup]
// (usually a registry) and are only consulted when the name is not a
// built-in.
package operator

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrUnknownOperator is returned when an operator name matches neither tier.
//
//nolint:staticcheck // ST1005: The message is part of the result contract.
var ErrUnknownOperator = errors.New("Unknown operator")

// ErrPanic wraps a panic raised by an operator implementation.
var ErrPanic = errors.New("operator panicked")

// Operator compares a fact value a against a comparison value b.
type Operator interface {
	Evaluate(a, b any) (bool, error)
}

// Func adapts a function to the [Operator] interface.
type Func func(a, b any) (bool, error)

// Evaluate calls f(a, b).
func (f Func) Evaluate(a, b any) (bool, error) {
	return f(a, b)
}

// Lookup resolves custom operators by name.
type Lookup interface {
	Operator(name string) (Operator, bool)
	OperatorNames() []string
}

var builtins = map[string]Func{
	"equal": func(a, b any) (bool, error) {
		return Equal(a, b), nil
	},
	"notEqual": func(a, b any) (bool, error) {
		return !Equal(a, b), nil
	},
	"lessThan": numeric(func(a, b float64) bool {
		return a < b
	}),
	"lessThanInclusive": numeric(func(a, b float64) bool {
		return a <= b
	}),
	"greaterThan": numeric(func(a, b float64) bool {
		return a > b
	}),
	"greaterThanInclusive": numeric(func(a, b float64) bool {
		return a >= b
	}),
	"in": func(a, b any) (bool, error) {
		items, ok := sequence(b)
		return ok && member(a, items), nil
	},
	"notIn": func(a, b any) (bool, error) {
		items, ok := sequence(b)
		return ok && !member(a, items), nil
	},
	"contains": func(a, b any) (bool, error) {
		found, ok := contains(a, b)
		return ok && found, nil
	},
	"doesNotContain": func(a, b any) (bool, error) {
		found, ok := contains(a, b)
		return ok && !found, nil
	},
}

// IsBuiltin reports whether name is a built-in operator.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// BuiltinNames returns the sorted names of all built-in operators.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Names returns all operator names available through custom, including
// built-ins, sorted.
func Names(custom Lookup) []string {
	names := BuiltinNames()
	if custom != nil {
		names = append(names, custom.OperatorNames()...)
	}

	slices.Sort(names)

	return slices.Compact(names)
}

// Dispatch evaluates the operator called name against (a, b).
//
// Built-in operators take precedence over custom ones. An operator name
// matching neither tier returns false with an error wrapping
// [ErrUnknownOperator]. A panic raised by an operator is recovered and
// returned as an error wrapping [ErrPanic]. Dispatch never panics.
func Dispatch(custom Lookup, name string, a, b any) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("%w: %s: %v", ErrPanic, name, r)
		}
	}()

	if fn, ok := builtins[name]; ok {
		return fn(a, b)
	}

	if custom != nil {
		if op, ok := custom.Operator(name); ok && op != nil {
			result, err = op.Evaluate(a, b)
			if err != nil {
				return false, fmt.Errorf("operator %s: %w", name, err)
			}

			return result, nil
		}
	}

	return false, UnknownError(name, Names(custom))
}
