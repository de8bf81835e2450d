// Package fact resolves named facts against an evaluation context.
//
// A [Registry] holds fact definitions and custom operators for the lifetime
// of the process. An [Almanac] binds one evaluation target and the project
// data, and memoizes fact values for exactly one run.
package fact

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/macropower/rulesim/pkg/operator"
)

// FileData is the reserved fact that resolves to the current target.
const FileData = "fileData"

var (
	// ErrDuplicate is returned when a fact name is registered twice.
	ErrDuplicate = errors.New("fact already registered")

	// ErrReserved is returned when registering a reserved fact name.
	ErrReserved = errors.New("fact name is reserved")

	// Compile-time interface checks.
	_ operator.Lookup = (*Registry)(nil)
	_ Definition      = Func(nil)
)

// Definition calculates a fact's value for an [Almanac].
type Definition interface {
	Calculate(ctx context.Context, params map[string]any, almanac *Almanac) (any, error)
}

// Func adapts a function to the [Definition] interface.
type Func func(ctx context.Context, params map[string]any, almanac *Almanac) (any, error)

// Calculate calls f.
func (f Func) Calculate(ctx context.Context, params map[string]any, almanac *Almanac) (any, error) {
	return f(ctx, params, almanac)
}

// Registry maps fact names to definitions, and custom operator names to
// operators. It is populated once, then shared read-only across runs.
type Registry struct {
	facts     map[string]Definition
	operators *operator.Table
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		facts:     map[string]Definition{},
		operators: operator.NewTable(),
	}
}

// RegisterFact adds a fact definition under name.
func (r *Registry) RegisterFact(name string, def Definition) error {
	if name == "" {
		return errors.New("fact name is empty")
	}
	if def == nil {
		return fmt.Errorf("fact %s: nil definition", name)
	}
	if name == FileData {
		return fmt.Errorf("%w: %s", ErrReserved, name)
	}
	if _, ok := r.facts[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}

	r.facts[name] = def

	return nil
}

// RegisterOperator adds a custom operator under name.
func (r *Registry) RegisterOperator(name string, op operator.Operator) error {
	err := r.operators.Register(name, op)
	if err != nil {
		return fmt.Errorf("register operator: %w", err)
	}

	return nil
}

// Fact returns the definition registered under name.
//
//nolint:ireturn // Definitions are user-supplied implementations.
func (r *Registry) Fact(name string) (Definition, bool) {
	if r == nil {
		return nil, false
	}

	def, ok := r.facts[name]

	return def, ok
}

// FactNames returns the sorted names of all facts, including [FileData].
func (r *Registry) FactNames() []string {
	names := []string{FileData}
	if r != nil {
		for name := range r.facts {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// Operator returns the custom operator registered under name.
//
//nolint:ireturn // Operators are user-supplied implementations.
func (r *Registry) Operator(name string) (operator.Operator, bool) {
	if r == nil {
		return nil, false
	}

	return r.operators.Operator(name)
}

// OperatorNames returns the sorted names of all custom operators.
func (r *Registry) OperatorNames() []string {
	if r == nil {
		return nil
	}

	return r.operators.OperatorNames()
}
