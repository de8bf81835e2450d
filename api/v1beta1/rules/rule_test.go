package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/api/v1beta1"
	"github.com/macropower/rulesim/api/v1beta1/rules"
	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/config"
	"github.com/macropower/rulesim/pkg/yaml"
)

const ruleFile = `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: no-console
event:
  type: warning
  message: Remove console.log calls.
conditions:
  all:
    - fact: fileContent
      operator: contains
      value: console.log
    - not:
        fact: fileExtension
        operator: equal
        value: .test.ts
---
apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: old-react
priority: 10
event:
  type: fatality
  params:
    upgradeTo: "18"
conditions:
  any:
    - fact: dependencies
      path: $.react
      operator: semverLessThan
      value: 18.0.0
`

const invalidNodeRule = `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: odd
event:
  type: info
conditions:
  all:
    - fact: fileSize
      operator: greaterThan
      value: 10
    - foo: bar
`

func TestParse(t *testing.T) {
	t.Parallel()

	for _, strict := range []bool{false, true} {
		rs, err := rules.Parse([]byte(ruleFile), rules.WithStrict(strict))
		require.NoError(t, err)
		require.Len(t, rs, 2)

		assert.Equal(t, "no-console", rs[0].Name)
		assert.Equal(t, condition.EventWarning, rs[0].Event.Type)
		assert.Equal(t, v1beta1.APIVersion, rs[0].GetAPIVersion())
		assert.Equal(t, rules.Kind, rs[0].GetKind())

		all, ok := rs[0].Root().(*condition.All)
		require.True(t, ok)
		require.Len(t, all.Conditions, 2)
		assert.IsType(t, &condition.Not{}, all.Conditions[1])

		assert.Equal(t, "old-react", rs[1].Name)
		require.NotNil(t, rs[1].Priority)
		assert.Equal(t, 10, *rs[1].Priority)
		assert.Equal(t, map[string]any{"upgradeTo": "18"}, rs[1].Event.Params)

		anyNode, ok := rs[1].Root().(*condition.Any)
		require.True(t, ok)

		leaf, ok := anyNode.Conditions[0].(*condition.Leaf)
		require.True(t, ok)
		assert.Equal(t, "$.react", leaf.Path)
	}
}

func TestParse_InvalidNode(t *testing.T) {
	t.Parallel()

	rs, err := rules.Parse([]byte(invalidNodeRule))
	require.NoError(t, err)
	require.Len(t, rs, 1)

	all, ok := rs[0].Root().(*condition.All)
	require.True(t, ok)
	assert.IsType(t, &condition.Invalid{}, all.Conditions[1])

	_, err = rules.Parse([]byte(invalidNodeRule), rules.WithStrict(true))
	require.Error(t, err)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.Contains(t, yamlErr.Path.String(), "$.conditions")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		wantErr error
		input   string
		errMsg  string
	}{
		"empty": {
			input:   "",
			wantErr: config.ErrEmptyDocument,
		},
		"wrong kind": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Configuration
name: x
`,
			wantErr: v1beta1.ErrUnsupportedKind,
		},
		"wrong api version": {
			input: `apiVersion: kat.jacobcolvin.com/v1beta1
kind: Rule
name: x
`,
			wantErr: v1beta1.ErrUnsupportedAPIVersion,
		},
		"duplicate names": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: x
---
apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: x
`,
			wantErr: rules.ErrDuplicateName,
		},
		"mixed group keys": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: x
conditions:
  all: []
  any: []
`,
			errMsg: "decode condition",
		},
		"invalid yaml": {
			input: `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: [unclosed
`,
			errMsg: "']'",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rs, err := rules.Parse([]byte(tc.input))
			require.Error(t, err)
			assert.Nil(t, rs)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
			if tc.errMsg != "" {
				assert.Contains(t, err.Error(), tc.errMsg)
			}
		})
	}
}

func TestParse_StrictStructure(t *testing.T) {
	t.Parallel()

	input := `apiVersion: rulesim.jacobcolvin.com/v1beta1
kind: Rule
name: x
event:
  type: info
`

	rs, err := rules.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Nil(t, rs[0].Root())

	_, err = rules.Parse([]byte(input), rules.WithStrict(true))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ruleFile), 0o600))

	rs, err := rules.Load(path, rules.WithStrict(true), rules.WithColor(false))
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	_, err = rules.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("kind: Rule\n"), 0o600))

	_, err = rules.Load(bad)
	require.ErrorIs(t, err, v1beta1.ErrUnsupportedAPIVersion)
	assert.Contains(t, err.Error(), bad)
}

func TestRule_MarshalYAML(t *testing.T) {
	t.Parallel()

	rs, err := rules.Parse([]byte(ruleFile))
	require.NoError(t, err)

	b, err := rs[0].MarshalYAML()
	require.NoError(t, err)
	assert.Contains(t, string(b), "kind: Rule")
	assert.Contains(t, string(b), "fact: fileContent")

	again, err := rules.Parse(b, rules.WithStrict(true))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, rs[0].Name, again[0].Name)
	assert.Equal(t, condition.Leaves(rs[0].Root()), condition.Leaves(again[0].Root()))
}

func TestSchema(t *testing.T) {
	t.Parallel()

	b, err := rules.Schema()
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, `"conditions"`)
	assert.Contains(t, s, `"#/$defs/Node"`)
	assert.Contains(t, s, `"Rule"`)
}
