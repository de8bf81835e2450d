package project_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/pkg/project"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestDirLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"package.json":             `{"name": "web", "dependencies": {"react": "^18.2.0"}}`,
		"src/App.tsx":              "export const App = () => null;\n",
		"src/util.ts":              "export {};\n",
		"README.md":                "# web\n",
		"node_modules/react/x.js":  "module.exports = {};\n",
		".git/HEAD":                "ref: refs/heads/main\n",
		"assets/logo.bin":          "PNG\x00\x01",
		"src/generated/big.gen.ts": strings.Repeat("x", 128),
	})

	var (
		mu     sync.Mutex
		stages []project.Stage
	)

	loader := project.NewDirLoader(dir, project.WithMaxFileSize(64))

	data, err := loader.Load(t.Context(), "", func(p project.Progress) {
		mu.Lock()
		defer mu.Unlock()

		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)

	assert.Equal(t, "web", data.Name)
	assert.Equal(t, dir, data.Root)
	assert.Equal(t, []string{"README.md", "package.json", "src/App.tsx", "src/util.ts"}, data.FileNames())
	assert.Equal(t, map[string]any{"react": "^18.2.0"}, data.Manifest["dependencies"])

	assert.Contains(t, stages, project.StageScan)
	assert.Contains(t, stages, project.StageRead)
	assert.Contains(t, stages, project.StageManifest)
}

func TestDirLoader_Options(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"project.yaml":        "name: from-yaml\nversion: 1.0.0\n",
		"src/App.tsx":         "x",
		"src/App.test.tsx":    "y",
		"vendor/lib/a.ts":     "z",
		"node_modules/b/b.ts": "w",
	})

	loader := project.NewDirLoader(dir,
		project.WithManifest("project.yaml"),
		project.WithInclude("*.tsx", "*.ts"),
		project.WithExclude("vendor"),
	)

	data, err := loader.Load(t.Context(), "override", nil)
	require.NoError(t, err)

	assert.Equal(t, "override", data.Name)
	assert.Equal(t, []string{"node_modules/b/b.ts", "src/App.test.tsx", "src/App.tsx"}, data.FileNames())
	assert.Equal(t, "1.0.0", data.Manifest["version"])
}

func TestDirLoader_NoManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"main.go": "package main\n"})

	data, err := project.NewDirLoader(dir).Load(t.Context(), "", nil)
	require.NoError(t, err)

	assert.Nil(t, data.Manifest)
	assert.Equal(t, filepath.Base(dir), data.Name)
}

func TestDirLoader_Errors(t *testing.T) {
	t.Parallel()

	_, err := project.NewDirLoader(filepath.Join(t.TempDir(), "missing")).Load(t.Context(), "", nil)
	require.Error(t, err)

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"package.json": "{not: [valid"})

	_, err = project.NewDirLoader(dir).Load(t.Context(), "", nil)
	require.ErrorContains(t, err, "package.json")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = project.NewDirLoader(t.TempDir()).Load(ctx, "", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestData_WithFiles(t *testing.T) {
	t.Parallel()

	base := &project.Data{
		Name:  "web",
		Files: map[string]string{"a.ts": "a", "b.ts": "b"},
	}

	overlay := base.WithFiles(map[string]string{"b.ts": "B", "c.ts": "c"})

	assert.Equal(t, map[string]string{"a.ts": "a", "b.ts": "B", "c.ts": "c"}, overlay.Files)
	assert.Equal(t, "web", overlay.Name)
	assert.Equal(t, map[string]string{"a.ts": "a", "b.ts": "b"}, base.Files)

	var empty *project.Data

	assert.Equal(t, map[string]string{"x": "y"}, empty.WithFiles(map[string]string{"x": "y"}).Files)
	assert.Nil(t, empty.FileNames())
}

func TestStaticLoader(t *testing.T) {
	t.Parallel()

	loader := project.NewStaticLoader("fixture", map[string]string{"App.tsx": "x"}, map[string]any{"name": "m"})

	var got []project.Progress

	data, err := loader.Load(t.Context(), "", func(p project.Progress) { got = append(got, p) })
	require.NoError(t, err)

	assert.Equal(t, "fixture", data.Name)
	assert.Equal(t, []string{"App.tsx"}, data.FileNames())
	assert.Equal(t, []project.Progress{{Stage: project.StageRead, Current: 1, Total: 1}}, got)

	data.Files["new"] = "mutated"

	again, err := loader.Load(t.Context(), "renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", again.Name)
	assert.NotContains(t, again.Files, "new")
}
