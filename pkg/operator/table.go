package operator

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicate is returned when an operator name is registered twice.
	ErrDuplicate = errors.New("operator already registered")

	// ErrShadowsBuiltin is returned when a custom operator reuses a built-in name.
	ErrShadowsBuiltin = errors.New("operator name is reserved by a built-in")

	// Compile-time interface checks.
	_ Lookup   = (*Table)(nil)
	_ Operator = (*CEL)(nil)
	_ Operator = Func(nil)
)

// Table holds custom operators. It is populated once and then only read.
type Table struct {
	ops map[string]Operator
}

// NewTable creates an empty [Table].
func NewTable() *Table {
	return &Table{ops: map[string]Operator{}}
}

// Register adds op under name.
func (t *Table) Register(name string, op Operator) error {
	if name == "" {
		return errors.New("operator name is empty")
	}
	if op == nil {
		return fmt.Errorf("operator %s: nil implementation", name)
	}
	if IsBuiltin(name) {
		return fmt.Errorf("%w: %s", ErrShadowsBuiltin, name)
	}
	if _, ok := t.ops[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}

	t.ops[name] = op

	return nil
}

// Operator returns the operator registered under name.
//
//nolint:ireturn // Operators are user-supplied implementations.
func (t *Table) Operator(name string) (Operator, bool) {
	if t == nil {
		return nil, false
	}

	op, ok := t.ops[name]

	return op, ok
}

// OperatorNames returns the sorted names of all registered operators.
func (t *Table) OperatorNames() []string {
	if t == nil {
		return nil
	}

	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
