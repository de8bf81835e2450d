package condition_test

import (
	"encoding/json"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/pkg/condition"
)

func TestFromValue(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   any
		want    condition.Condition
		wantErr bool
	}{
		"leaf": {
			input: map[string]any{
				"fact": "fileData", "operator": "notEqual", "value": "X", "path": "$.fileName",
			},
			want: &condition.Leaf{Fact: "fileData", Operator: "notEqual", Value: "X", Path: "$.fileName"},
		},
		"leaf with params": {
			input: map[string]any{
				"fact": "dependencies", "operator": "equal", "value": 1,
				"params": map[string]any{"name": "react"},
			},
			want: &condition.Leaf{
				Fact: "dependencies", Operator: "equal", Value: 1,
				Params: map[string]any{"name": "react"},
			},
		},
		"nested groups": {
			input: map[string]any{
				"all": []any{
					map[string]any{"fact": "a", "operator": "equal", "value": 1},
					map[string]any{"not": map[string]any{
						"any": []any{map[string]any{"fact": "b", "operator": "equal", "value": 2}},
					}},
				},
			},
			want: &condition.All{Conditions: []condition.Condition{
				&condition.Leaf{Fact: "a", Operator: "equal", Value: 1},
				&condition.Not{Condition: &condition.Any{Conditions: []condition.Condition{
					&condition.Leaf{Fact: "b", Operator: "equal", Value: 2},
				}}},
			}},
		},
		"empty all": {
			input: map[string]any{"all": []any{}},
			want:  &condition.All{Conditions: []condition.Condition{}},
		},
		"yaml any-keyed map": {
			input: map[any]any{"fact": "a", "operator": "in", "value": []any{1}},
			want:  &condition.Leaf{Fact: "a", Operator: "in", Value: []any{1}},
		},
		"no recognizable shape": {
			input: map[string]any{"fact": "a"},
			want: &condition.Invalid{
				Raw:    map[string]any{"fact": "a"},
				Reason: "node has neither fact and operator nor all, any or not",
			},
		},
		"scalar": {
			input: "nope",
			want:  &condition.Invalid{Raw: "nope", Reason: "expected a mapping, got string"},
		},
		"mixed groups": {
			input:   map[string]any{"all": []any{}, "any": []any{}},
			wantErr: true,
		},
		"group with fact": {
			input:   map[string]any{"not": map[string]any{}, "fact": "a"},
			wantErr: true,
		},
		"all not a list": {
			input:   map[string]any{"all": map[string]any{}},
			wantErr: true,
		},
		"fact not a string": {
			input:   map[string]any{"fact": 1, "operator": "equal"},
			wantErr: true,
		},
		"nested error": {
			input: map[string]any{
				"any": []any{map[string]any{"fact": "a", "operator": 3}},
			},
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := condition.FromValue(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, condition.ErrDecode)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromValue_ErrorIncludesPath(t *testing.T) {
	t.Parallel()

	_, err := condition.FromValue(map[string]any{
		"all": []any{
			map[string]any{"fact": "a", "operator": "equal"},
			map[string]any{"not": map[string]any{"all": 1}},
		},
	})
	require.ErrorIs(t, err, condition.ErrDecode)
	assert.ErrorContains(t, err, "conditions.all.1.not")
}

func TestRule_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	input := `{
		"name": "no-x",
		"priority": 5,
		"conditions": {"all": [{"fact": "fileData", "operator": "notEqual", "value": "X", "path": "$.fileName"}]},
		"event": {"type": "warning", "message": "file is not X"}
	}`

	var rule condition.Rule
	require.NoError(t, json.Unmarshal([]byte(input), &rule))

	assert.Equal(t, "no-x", rule.Name)
	require.NotNil(t, rule.Priority)
	assert.Equal(t, 5, *rule.Priority)
	assert.Equal(t, condition.EventWarning, rule.Event.Type)

	all, ok := rule.Root().(*condition.All)
	require.True(t, ok)
	require.Len(t, all.Conditions, 1)
	assert.Equal(t, &condition.Leaf{
		Fact: "fileData", Operator: "notEqual", Value: "X", Path: "$.fileName",
	}, all.Conditions[0])

	out, err := json.Marshal(rule)
	require.NoError(t, err)

	var again condition.Rule
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, rule, again)
}

func TestRule_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	input := `
name: react-version
conditions:
  any:
    - fact: dependencies
      operator: semverLessThan
      value: "18.0.0"
      path: $.react
    - not:
        fact: fileExtension
        operator: in
        value: [".ts", ".tsx"]
event:
  type: fatality
  params:
    link: https://example.com
`

	var rule condition.Rule
	require.NoError(t, yaml.Unmarshal([]byte(input), &rule))

	anyNode, ok := rule.Root().(*condition.Any)
	require.True(t, ok)
	require.Len(t, anyNode.Conditions, 2)

	not, ok := anyNode.Conditions[1].(*condition.Not)
	require.True(t, ok)

	leaf, ok := not.Condition.(*condition.Leaf)
	require.True(t, ok)
	assert.Equal(t, "fileExtension", leaf.Fact)
	assert.Equal(t, []any{".ts", ".tsx"}, leaf.Value)
	assert.Equal(t, condition.EventFatality, rule.Event.Type)
	assert.Equal(t, "https://example.com", rule.Event.Params["link"])

	out, err := yaml.Marshal(rule)
	require.NoError(t, err)

	var again condition.Rule
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, condition.ToValue(rule.Root()), condition.ToValue(again.Root()))
}

func TestRule_Validate(t *testing.T) {
	t.Parallel()

	leaf := &condition.Leaf{Fact: "a", Operator: "equal", Value: 1}

	tcs := map[string]struct {
		rule    *condition.Rule
		wantMsg []string
	}{
		"valid": {
			rule: &condition.Rule{
				Name:       "ok",
				Conditions: condition.NewNode(&condition.All{Conditions: []condition.Condition{leaf}}),
				Event:      condition.Event{Type: condition.EventInfo},
			},
		},
		"no conditions": {
			rule:    &condition.Rule{Name: "empty"},
			wantMsg: []string{"rule has no conditions"},
		},
		"invalid node and empty names": {
			rule: &condition.Rule{
				Name: "bad",
				Conditions: condition.NewNode(&condition.Any{Conditions: []condition.Condition{
					&condition.Invalid{Reason: "broken"},
					&condition.Leaf{},
				}}),
			},
			wantMsg: []string{
				"conditions.any.0: broken",
				"conditions.any.1: fact name is empty",
				"conditions.any.1: operator name is empty",
			},
		},
		"unknown event type": {
			rule: &condition.Rule{
				Name:       "evt",
				Conditions: condition.NewNode(leaf),
				Event:      condition.Event{Type: "panic"},
			},
			wantMsg: []string{`unknown event type "panic"`},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tc.rule.Validate()
			if len(tc.wantMsg) == 0 {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, condition.ErrInvalidRule)
			for _, msg := range tc.wantMsg {
				assert.ErrorContains(t, err, msg)
			}
		})
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()

	tree := &condition.All{Conditions: []condition.Condition{
		&condition.Leaf{Fact: "a", Operator: "equal"},
		&condition.Not{Condition: &condition.Any{Conditions: []condition.Condition{
			&condition.Leaf{Fact: "b", Operator: "equal"},
			&condition.Leaf{Fact: "c", Operator: "equal"},
		}}},
	}}

	var paths []string

	condition.Walk(tree, func(p condition.Path, _ condition.Condition) {
		paths = append(paths, p.Key())
	})

	assert.Equal(t, []string{
		"conditions",
		"conditions.all.0",
		"conditions.all.1",
		"conditions.all.1.not",
		"conditions.all.1.not.any.0",
		"conditions.all.1.not.any.1",
	}, paths)
	assert.Equal(t, 3, condition.Leaves(tree))
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := condition.Root().Child("all")
	a := base.Child("0")
	b := base.Child("1")

	assert.Equal(t, "conditions.all.0", a.Key())
	assert.Equal(t, "conditions.all.1", b.Key())
	assert.Equal(t, condition.Path{"conditions", "all", "1"}, condition.Root().AllChild(1))
}
