package operator

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/macropower/rulesim/pkg/expr"
	"github.com/macropower/rulesim/pkg/semver"
)

// Plugins returns the standard custom operators: `matches` and the semver
// comparison family. They are registered alongside user-defined operators.
func Plugins() map[string]Operator {
	return map[string]Operator{
		"matches": Func(matches),
		"semverEqual": semverOp(func(c int) bool {
			return c == 0
		}),
		"semverGreaterThan": semverOp(func(c int) bool {
			return c > 0
		}),
		"semverGreaterThanInclusive": semverOp(func(c int) bool {
			return c >= 0
		}),
		"semverLessThan": semverOp(func(c int) bool {
			return c < 0
		}),
		"semverLessThanInclusive": semverOp(func(c int) bool {
			return c <= 0
		}),
	}
}

var (
	patternCache   = map[string]*regexp.Regexp{}
	patternCacheMu sync.Mutex
)

// matches tests a string fact value against a regular expression.
func matches(a, b any) (bool, error) {
	s, ok := a.(string)
	if !ok {
		return false, nil
	}

	pattern, ok := b.(string)
	if !ok {
		return false, fmt.Errorf("pattern must be a string, got %T", b)
	}

	patternCacheMu.Lock()
	re, ok := patternCache[pattern]
	patternCacheMu.Unlock()

	if !ok {
		var err error

		re, err = regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("compile pattern: %w", err)
		}

		patternCacheMu.Lock()
		patternCache[pattern] = re
		patternCacheMu.Unlock()
	}

	return re.MatchString(s), nil
}

func semverOp(cmp func(int) bool) Func {
	return func(a, b any) (bool, error) {
		sa, ok := a.(string)
		if !ok {
			return false, nil
		}

		sb, ok := b.(string)
		if !ok {
			return false, nil
		}

		c, ok := semver.Compare(sa, sb)
		if !ok {
			return false, nil
		}

		return cmp(c), nil
	}
}

// CEL is an operator defined by a CEL expression over the variables `fact`
// (the resolved fact value) and `value` (the comparison value). The
// expression must produce a bool.
type CEL struct {
	program    cel.Program
	Expression string
}

var celEnv = sync.OnceValues(func() (*expr.Environment, error) {
	return expr.NewEnvironment(
		cel.Variable("fact", cel.DynType),
		cel.Variable("value", cel.DynType),
	)
})

// NewCEL compiles expression into a [*CEL] operator.
func NewCEL(expression string) (*CEL, error) {
	env, err := celEnv()
	if err != nil {
		return nil, err
	}

	program, err := env.CompileBool(expression)
	if err != nil {
		return nil, err
	}

	return &CEL{Expression: expression, program: program}, nil
}

// Evaluate runs the expression with `fact` bound to a and `value` bound to b.
func (c *CEL) Evaluate(a, b any) (bool, error) {
	//nolint:wrapcheck // Errors already carry expression context.
	return expr.EvalBool(context.Background(), c.program, map[string]any{
		"fact":  expr.ConvertToCELValue(a),
		"value": expr.ConvertToCELValue(b),
	})
}
