package facts

import (
	"context"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/macropower/rulesim/pkg/expr"
	"github.com/macropower/rulesim/pkg/fact"
)

var _ fact.Definition = (*CEL)(nil)

// CEL is a fact defined by a CEL expression.
//
// The expression can reference these variables:
//   - fileName: the target's name.
//   - filePath: the target's path.
//   - fileContent: the target's content.
//   - files: a map of project file names to contents.
//   - manifest: the project manifest, or null.
//   - params: the parameters of the referencing condition, or null.
type CEL struct {
	program    cel.Program
	Expression string
}

var celEnv = sync.OnceValues(func() (*expr.Environment, error) {
	return expr.NewEnvironment(
		cel.Variable("fileName", cel.StringType),
		cel.Variable("filePath", cel.StringType),
		cel.Variable("fileContent", cel.StringType),
		cel.Variable("files", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("manifest", cel.DynType),
		cel.Variable("params", cel.DynType),
	)
})

// NewCEL compiles expression into a [*CEL] fact.
func NewCEL(expression string) (*CEL, error) {
	env, err := celEnv()
	if err != nil {
		return nil, err
	}

	program, err := env.Compile(expression)
	if err != nil {
		return nil, err
	}

	return &CEL{Expression: expression, program: program}, nil
}

// Calculate evaluates the expression against the almanac's target and project.
func (c *CEL) Calculate(ctx context.Context, params map[string]any, a *fact.Almanac) (any, error) {
	target := a.Target()

	files := map[string]string{}

	var manifest, vars any
	if data := a.Project(); data != nil {
		if data.Files != nil {
			files = data.Files
		}
		if data.Manifest != nil {
			manifest = data.Manifest
		}
	}
	if params != nil {
		vars = params
	}

	//nolint:wrapcheck // Errors already carry expression context.
	return expr.Eval(ctx, c.program, map[string]any{
		"fileName":    target.Name,
		"filePath":    target.Path,
		"fileContent": target.Content,
		"files":       expr.ConvertToCELValue(files),
		"manifest":    expr.ConvertToCELValue(manifest),
		"params":      expr.ConvertToCELValue(vars),
	})
}
