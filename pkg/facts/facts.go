// Package facts provides the standard fact library.
//
// Standard facts describe the current target file and the loaded project.
// [Register] adds all of them to a [fact.Registry].
package facts

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/macropower/rulesim/pkg/fact"
)

// Standard fact names.
const (
	FileContent   = "fileContent"
	FileExtension = "fileExtension"
	FileSize      = "fileSize"
	FileLines     = "fileLines"
	FileStructure = "fileStructure"
	ProjectFiles  = "projectFiles"
	Manifest      = "manifest"
	Dependencies  = "dependencies"
)

// DependencyFields are the manifest fields merged by the [Dependencies] fact,
// in increasing order of precedence.
var DependencyFields = []string{"peerDependencies", "devDependencies", "dependencies"}

// Standard returns the standard fact definitions keyed by name.
func Standard() map[string]fact.Definition {
	return map[string]fact.Definition{
		FileContent:   fact.Func(fileContent),
		FileExtension: fact.Func(fileExtension),
		FileSize:      fact.Func(fileSize),
		FileLines:     fact.Func(fileLines),
		FileStructure: fact.Func(fileStructure),
		ProjectFiles:  fact.Func(projectFiles),
		Manifest:      fact.Func(manifest),
		Dependencies:  fact.Func(dependencies),
	}
}

// Register adds the standard facts to reg.
func Register(reg *fact.Registry) error {
	for name, def := range Standard() {
		err := reg.RegisterFact(name, def)
		if err != nil {
			return fmt.Errorf("register standard facts: %w", err)
		}
	}

	return nil
}

func fileContent(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	return a.Target().Content, nil
}

func fileExtension(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	return path.Ext(a.Target().Name), nil
}

func fileSize(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	return len(a.Target().Content), nil
}

func fileLines(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	return CountLines(a.Target().Content), nil
}

// CountLines returns the number of lines in s. A trailing newline does not
// start a new line.
func CountLines(s string) int {
	if s == "" {
		return 0
	}

	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// fileStructure parses YAML and JSON targets. Other targets, and any target
// when the almanac skips AST parsing, have no structure.
func fileStructure(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	if a.SkipAST() {
		return nil, nil //nolint:nilnil // Absent by request.
	}

	target := a.Target()

	switch strings.ToLower(path.Ext(target.Name)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, nil //nolint:nilnil // Unsupported file types have no structure.
	}

	var v any

	err := yaml.Unmarshal([]byte(target.Content), &v)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target.Name, err)
	}

	return v, nil
}

func projectFiles(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	names := a.Project().FileNames()
	if names == nil {
		names = []string{}
	}

	return names, nil
}

func manifest(_ context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	data := a.Project()
	if data == nil || data.Manifest == nil {
		return nil, nil //nolint:nilnil // Projects without a manifest are valid.
	}

	return data.Manifest, nil
}

func dependencies(ctx context.Context, _ map[string]any, a *fact.Almanac) (any, error) {
	m, err := a.Value(ctx, Manifest, nil)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	deps := map[string]any{}

	manifest, ok := m.(map[string]any)
	if !ok {
		return deps, nil
	}

	for _, field := range DependencyFields {
		section, ok := manifest[field].(map[string]any)
		if !ok {
			continue
		}

		for name, version := range section {
			deps[name] = version
		}
	}

	return deps, nil
}
