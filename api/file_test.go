package api_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/api"
)

//nolint:paralleltest // Sets environment variables.
func TestGetConfigPath(t *testing.T) {
	tmp := filepath.Join(os.TempDir(), "rulesim", "config.yaml") //nolint:usetesting // Needs to equal host.

	tcs := map[string]struct {
		env  map[string]string
		want string
	}{
		"xdg config home": {
			env:  map[string]string{"XDG_CONFIG_HOME": "/custom/config", "HOME": "/test/home"},
			want: "/custom/config/rulesim/config.yaml",
		},
		"home directory": {
			env:  map[string]string{"XDG_CONFIG_HOME": "", "HOME": "/test/home"},
			want: "/test/home/.config/rulesim/config.yaml",
		},
		"temp directory": {
			env:  map[string]string{"XDG_CONFIG_HOME": "", "HOME": ""},
			want: tmp,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			assert.Equal(t, tc.want, api.GetConfigPath("config.yaml"))
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "rule.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: r"), 0o600))

	b, err := api.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "name: r", string(b))

	_, err = api.ReadFile(dir)
	require.ErrorIs(t, err, api.ErrIsDirectory)

	_, err = api.ReadFile(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalYAML(t *testing.T) {
	t.Parallel()

	b, err := api.MarshalYAML(map[string]any{"name": "no-console", "priority": 2})
	require.NoError(t, err)
	assert.Contains(t, string(b), "name: no-console")
	assert.Contains(t, string(b), "priority: 2")
}

func TestWriteIfNotExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, api.WriteIfNotExists(path, []byte("first")))
	require.NoError(t, api.WriteIfNotExists(path, []byte("second")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	err = api.WriteIfNotExists(dir, []byte("x"))
	require.ErrorIs(t, err, api.ErrIsDirectory)
	assert.Contains(t, err.Error(), "path is a directory")
}

func TestWriteDefaultFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		existing  *string
		wantData  string
		force     bool
		wantOld   bool
		directory bool
	}{
		"new file": {
			wantData: "default",
		},
		"existing file is kept": {
			existing: ptr("custom"),
			wantData: "custom",
		},
		"existing file is backed up with force": {
			existing: ptr("custom"),
			force:    true,
			wantData: "default",
			wantOld:  true,
		},
		"directory": {
			directory: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, ".rulesim.yaml")

			if tc.existing != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tc.existing), 0o600))
			}
			if tc.directory {
				require.NoError(t, os.Mkdir(path, 0o700))

				err := api.WriteDefaultFile(path, []byte("default"), tc.force, "test")
				require.ErrorIs(t, err, api.ErrIsDirectory)

				return
			}

			require.NoError(t, api.WriteDefaultFile(path, []byte("default"), tc.force, "test"))

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tc.wantData, string(b))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)

			var backups []string
			for _, e := range entries {
				if strings.HasSuffix(e.Name(), ".old") {
					backups = append(backups, e.Name())
				}
			}

			if !tc.wantOld {
				assert.Empty(t, backups)

				return
			}

			require.Len(t, backups, 1)

			old, err := os.ReadFile(filepath.Join(dir, backups[0]))
			require.NoError(t, err)
			assert.Equal(t, *tc.existing, string(old))
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	config := filepath.Join(root, "rulesim.yaml")
	require.NoError(t, os.WriteFile(config, []byte("kind: Configuration"), 0o600))

	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o700))

	file := filepath.Join(sub, "App.tsx")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	for name, target := range map[string]string{
		"same directory":   root,
		"parent directory": sub,
		"file path":        file,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := api.FindConfigFile(target, api.ConfigFileNames)
			require.NoError(t, err)
			assert.Equal(t, config, got)
		})
	}

	t.Run("preference order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		for _, name := range api.ConfigFileNames {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
		}

		got, err := api.FindConfigFile(dir, api.ConfigFileNames)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, api.ConfigFileNames[0]), got)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		got, err := api.FindConfigFile(t.TempDir(), []string{"no-such-config.yaml"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("missing target", func(t *testing.T) {
		t.Parallel()

		_, err := api.FindConfigFile(filepath.Join(root, "missing"), api.ConfigFileNames)
		require.Error(t, err)
	})
}

//nolint:paralleltest // Sets environment variables.
func TestResolveConfigPath(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	project := t.TempDir()

	got, err := api.ResolveConfigPath("explicit.yaml", project)
	require.NoError(t, err)
	assert.Equal(t, "explicit.yaml", got)

	got, err = api.ResolveConfigPath("", project)
	require.NoError(t, err)
	assert.Empty(t, got)

	userPath := filepath.Join(xdg, "rulesim", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o700))
	require.NoError(t, os.WriteFile(userPath, []byte("kind: Configuration"), 0o600))

	got, err = api.ResolveConfigPath("", project)
	require.NoError(t, err)
	assert.Equal(t, userPath, got)

	projectPath := filepath.Join(project, "rulesim.yaml")
	require.NoError(t, os.WriteFile(projectPath, []byte("kind: Configuration"), 0o600))

	got, err = api.ResolveConfigPath("", project)
	require.NoError(t, err)
	assert.Equal(t, projectPath, got)
}

func ptr[T any](v T) *T {
	return &v
}
