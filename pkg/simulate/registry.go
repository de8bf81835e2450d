package simulate

import (
	"fmt"

	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/facts"
	"github.com/macropower/rulesim/pkg/operator"
)

// DefaultRegistry returns a registry holding the standard facts and the
// plugin operators.
func DefaultRegistry() (*fact.Registry, error) {
	reg := fact.NewRegistry()

	err := facts.Register(reg)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	for name, op := range operator.Plugins() {
		err := reg.RegisterOperator(name, op)
		if err != nil {
			return nil, fmt.Errorf("register plugin operators: %w", err)
		}
	}

	return reg, nil
}
