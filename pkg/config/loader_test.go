package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/api/v1beta1/configs"
	"github.com/macropower/rulesim/api/v1beta1/rules"
	"github.com/macropower/rulesim/pkg/config"
	"github.com/macropower/rulesim/pkg/yaml"
)

func TestNewLoaderFromFile(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupFile func(t *testing.T) string
		wantErr   bool
	}{
		"valid file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				content := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
`

				return createTempFile(t, content)
			},
			wantErr: false,
		},
		"non-existent file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return "/non/existent/file.yaml"
			},
			wantErr: true,
		},
		"directory instead of file": {
			setupFile: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := tc.setupFile(t)

			got, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)

			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, got)
			}
		})
	}
}

func TestNewLoaderFromBytes(t *testing.T) {
	t.Parallel()

	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
project:
  manifest: app.json
facts:
  isTest:
    expression: fileName.endsWith(".test.ts")
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator)
	require.NotNil(t, cl)
	assert.Equal(t, []byte(input), cl.Source())

	err := cl.Validate()
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err)
	assert.Equal(t, "rulesim.jacobcolvin.com/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())
	assert.Equal(t, "app.json", cfg.Project.Manifest)
	assert.Contains(t, cfg.Facts, "isTest")
}

func TestLoader_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		errMsg  string
		errPath string
		wantErr bool
	}{
		"valid config": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
project:
  exclude: [node_modules]
`,
			wantErr: false,
		},
		"invalid yaml": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields": {
			input: `project:
  manifest: package.json
`,
			wantErr: true,
			errMsg:  "missing properties 'apiVersion', 'kind'",
			errPath: "$",
		},
		"unknown field": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
project:
  manifset: package.json
`,
			wantErr: true,
			errPath: "$.project",
		},
		"wrong type": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
project:
  exclude: node_modules
`,
			wantErr: true,
			errPath: "$.project.exclude",
		},
		"empty": {
			input:   "",
			wantErr: true,
			errMsg:  "no documents found",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			err := cl.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)

			if tc.errMsg != "" {
				assert.Contains(t, err.Error(), tc.errMsg)
			}
			if tc.errPath != "" {
				var yamlErr *yaml.Error
				require.ErrorAs(t, err, &yamlErr)
				assert.Equal(t, tc.errPath, yamlErr.Path.String())
				assert.Equal(t, []byte(tc.input), yamlErr.Source)
			}
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		errMsg  string
		wantErr bool
	}{
		"valid config": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
`,
			wantErr: false,
		},
		"invalid yaml": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
invalid: [unclosed
`,
			wantErr: true,
			errMsg:  "sequence end token ']' not found",
		},
		"missing required fields still loads": {
			// Load() only parses YAML, it doesn't validate schema.
			// Use Validate() to check schema requirements.
			input: `project:
  manifest: package.json
`,
			wantErr: false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cl := config.NewLoaderFromBytes([]byte(tc.input), configs.New, configs.DefaultValidator)

			cfg, err := cl.Load()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
			}
		})
	}
}

func TestLoader_LoadAll(t *testing.T) {
	t.Parallel()

	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: first
event:
  type: info
conditions:
  all: []
---
apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: second
event:
  type: warning
conditions:
  any: []
`

	cl := config.NewLoaderFromBytes([]byte(input), rules.New, rules.DefaultValidator)
	require.NoError(t, cl.Validate())

	rs, err := cl.LoadAll()
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "first", rs[0].Name)
	assert.Equal(t, "second", rs[1].Name)

	first, err := cl.Load()
	require.NoError(t, err)
	assert.Equal(t, "first", first.Name)
}

func TestLoader_ValidateSecondDocument(t *testing.T) {
	t.Parallel()

	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: first
event:
  type: info
conditions:
  all: []
---
apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: second
event:
  type: loud
conditions:
  all: []
`

	cl := config.NewLoaderFromBytes([]byte(input), rules.New, rules.DefaultValidator)

	err := cl.Validate()

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.Equal(t, "$.event.type", yamlErr.Path.String())
}

func TestLoader_WithValidator(t *testing.T) {
	t.Parallel()

	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
unknown: field
`

	// Test with nil validator (no validation).
	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator, config.WithValidator(nil))
	require.NotNil(t, cl)

	err := cl.Validate()
	require.NoError(t, err)
}

func TestLoader_WrapError(t *testing.T) {
	t.Parallel()

	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
project:
  maxFileSize: lots
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator, config.WithColor(false))

	errBad := errors.New("bad size")
	path := yaml.NewPathBuilder().Root().Child("project").Child("maxFileSize").Build()

	err := cl.WrapError(errBad, path)
	require.ErrorIs(t, err, errBad)
	assert.Contains(t, err.Error(), "bad size")
	assert.Contains(t, err.Error(), "maxFileSize")

	require.Same(t, errBad, cl.WrapError(errBad, nil))
}

// createTempFile creates a temporary file with the given content.
func createTempFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)

	err = tmpFile.Close()
	require.NoError(t, err)

	return tmpFile.Name()
}

func TestLoader_LoadCallsEnsureDefaults(t *testing.T) {
	t.Parallel()

	// Config with only apiVersion and kind - Project should be nil before EnsureDefaults.
	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
`

	cl := config.NewLoaderFromBytes([]byte(input), configs.New, configs.DefaultValidator)

	cfg, err := cl.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Project, "EnsureDefaults should initialize Project")
	assert.Equal(t, "package.json", cfg.Project.Manifest)
}

func TestLoader_RoundTrip(t *testing.T) {
	t.Parallel()

	// Write the embedded default config.
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	err := configs.WriteDefault(configPath, false)
	require.NoError(t, err)

	// Load the config.
	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	require.NoError(t, err)

	cfg, err := cl.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Facts)
}
