package expr

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Environment provides a thread-safe wrapper around a [*cel.Env].
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment].
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := createEnvironment(opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// createEnvironment creates the [*cel.Env] using the global mutex.
func createEnvironment(opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts, cel.Lib(&lib{}))

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Compile compiles a CEL expression and returns a program.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string) (cel.Program, error) {
	return e.compile(expression, nil)
}

// CompileBool compiles a CEL expression that must evaluate to a bool.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) CompileBool(expression string) (cel.Program, error) {
	return e.compile(expression, cel.BoolType)
}

//nolint:ireturn // Following CEL's function signature.
func (e *Environment) compile(expression string, want *cel.Type) (cel.Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	if out := ast.OutputType(); want != nil && out.Kind() != types.DynKind && !want.IsAssignableType(out) {
		return nil, fmt.Errorf("compile expression: expected %s result, got %s", want, out)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return program, nil
}

// Eval evaluates a program against vars and converts the result to a Go
// value. Evaluation is interrupted when ctx is done.
func Eval(ctx context.Context, program cel.Program, vars map[string]any) (any, error) {
	out, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}

	return FromCELValue(out), nil
}

// EvalBool evaluates a program that must produce a bool.
func EvalBool(ctx context.Context, program cel.Program, vars map[string]any) (bool, error) {
	v, err := Eval(ctx, program, vars)
	if err != nil {
		return false, err
	}

	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate expression: expected bool result, got %T", v)
	}

	return b, nil
}
