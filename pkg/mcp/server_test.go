package mcp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulesim/pkg/mcp"
	"github.com/macropower/rulesim/pkg/project"
	"github.com/macropower/rulesim/pkg/simulate"
)

const consoleRule = `
name: no-console
conditions:
  all:
    - fact: fileContent
      operator: contains
      value: console.log
event:
  type: warning
  message: Remove console.log calls.
`

const globalRule = `
name: has-new-file
conditions:
  all:
    - fact: projectFiles
      operator: contains
      value: src/new.ts
    - fact: manifest
      path: $.name
      operator: equal
      value: web
event:
  type: info
`

func newTestSession(t *testing.T) *sdk.ClientSession {
	t.Helper()

	loader := project.NewStaticLoader("web", map[string]string{
		"src/App.tsx":  "console.log('hi');\n",
		"src/util.ts":  "export const x = 1;\n",
		"package.json": `{"name": "web"}`,
	}, map[string]any{"name": "web"})

	testServer, err := mcp.NewServer("", simulate.New(loader))
	require.NoError(t, err)

	ctx := t.Context()

	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	serverSession, err := testServer.Server().Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := sdk.NewClient(&sdk.Implementation{Name: "client"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, clientSession.Close())
		assert.NoError(t, serverSession.Wait())
	})

	return clientSession
}

func structured(t *testing.T, r *sdk.CallToolResult) map[string]any {
	t.Helper()

	require.NotNil(t, r)
	require.False(t, r.IsError)

	sc, ok := r.StructuredContent.(map[string]any)
	require.True(t, ok, "StructuredContent should be a map[string]any")

	return sc
}

func TestNewServer_NilSimulator(t *testing.T) {
	t.Parallel()

	_, err := mcp.NewServer("", nil)
	require.Error(t, err)
}

func TestServer_ListFiles(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	tcs := map[string]struct {
		args map[string]any
		want []any
	}{
		"all files": {
			args: map[string]any{},
			want: []any{"package.json", "src/App.tsx", "src/util.ts"},
		},
		"fuzzy query": {
			args: map[string]any{"query": "App"},
			want: []any{"src/App.tsx"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
				Name:      "list_files",
				Arguments: tc.args,
			})
			require.NoError(t, err)

			sc := structured(t, r)
			assert.Equal(t, tc.want, sc["files"])
			assert.Equal(t, float64(len(tc.want)), sc["fileCount"])
			assert.Equal(t, "web", sc["project"])
			assert.Equal(t, true, sc["hasManifest"])
		})
	}
}

func TestServer_SimulateRule(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	tcs := map[string]struct {
		args        map[string]any
		want        string
		wantEvent   string
		wantSuccess bool
	}{
		"triggered": {
			args:        map[string]any{"rule": consoleRule, "file": "src/App.tsx"},
			want:        "triggered",
			wantEvent:   "warning",
			wantSuccess: true,
		},
		"not triggered": {
			args:        map[string]any{"rule": consoleRule, "file": "src/util.ts"},
			want:        "not-triggered",
			wantSuccess: true,
		},
		"content overrides the file": {
			args: map[string]any{
				"rule":    consoleRule,
				"file":    "src/App.tsx",
				"content": "export {};\n",
			},
			want:        "not-triggered",
			wantSuccess: true,
		},
		"content for a new file": {
			args: map[string]any{
				"rule":    consoleRule,
				"file":    "src/new.ts",
				"content": "console.log(1);\n",
			},
			want:        "triggered",
			wantEvent:   "warning",
			wantSuccess: true,
		},
		"missing file": {
			args: map[string]any{"rule": consoleRule, "file": "src/app.tsx"},
			want: "error",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
				Name:      "simulate_rule",
				Arguments: tc.args,
			})
			require.NoError(t, err)

			sc := structured(t, r)
			assert.Equal(t, tc.want, sc["finalResult"])
			assert.Equal(t, tc.wantSuccess, sc["success"])
			assert.Equal(t, tc.args["file"], sc["fileName"])

			if tc.wantEvent != "" {
				assert.Equal(t, tc.wantEvent, sc["eventType"])
			} else {
				assert.NotContains(t, sc, "eventType")
			}
		})
	}
}

func TestServer_SimulateRuleConditions(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "simulate_rule",
		Arguments: map[string]any{"rule": consoleRule, "file": "src/App.tsx"},
	})
	require.NoError(t, err)

	sc := structured(t, r)

	conditions, ok := sc["conditions"].([]any)
	require.True(t, ok)
	require.Len(t, conditions, 1)

	leaf, ok := conditions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "conditions.all.0", leaf["path"])
	assert.Equal(t, "fileContent", leaf["fact"])
	assert.Equal(t, "contains", leaf["operator"])
	assert.Equal(t, "console.log", leaf["compareValue"])
	assert.Equal(t, "console.log('hi');\n", leaf["factValue"])
	assert.Equal(t, true, leaf["result"])

	require.NotEmpty(t, r.Content)

	text, ok := r.Content[0].(*sdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "no-console")
	assert.Contains(t, text.Text, "TRIGGERED")
}

func TestServer_SimulateRuleMissingFileHint(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "simulate_rule",
		Arguments: map[string]any{"rule": consoleRule, "file": "src/app.tsx"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.Content)

	text, ok := r.Content[0].(*sdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "INVALID INPUT ERROR")
	assert.Contains(t, text.Text, `did you mean "src/App.tsx"?`)
}

func TestServer_SimulateAll(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "simulate_all",
		Arguments: map[string]any{"rule": consoleRule},
	})
	require.NoError(t, err)

	sc := structured(t, r)
	assert.Equal(t, float64(1), sc["triggered"])
	assert.Equal(t, float64(2), sc["notTriggered"])
	assert.Equal(t, float64(0), sc["errors"])
	assert.Equal(t, "Rule triggered for 1 of 3 files.", sc["message"])

	results, ok := sc["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 3)

	names := make([]any, 0, len(results))
	for _, res := range results {
		m, ok := res.(map[string]any)
		require.True(t, ok)

		names = append(names, m["fileName"])
	}

	assert.Equal(t, []any{"package.json", "src/App.tsx", "src/util.ts"}, names)
}

func TestServer_SimulateGlobal(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	tcs := map[string]struct {
		args map[string]any
		want string
	}{
		"without extra files": {
			args: map[string]any{"rule": globalRule},
			want: "not-triggered",
		},
		"with extra files": {
			args: map[string]any{
				"rule":       globalRule,
				"extraFiles": map[string]any{"src/new.ts": "export {};\n"},
			},
			want: "triggered",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
				Name:      "simulate_global",
				Arguments: tc.args,
			})
			require.NoError(t, err)

			sc := structured(t, r)
			assert.Equal(t, simulate.GlobalTarget, sc["fileName"])
			assert.Equal(t, tc.want, sc["finalResult"])
		})
	}

	// The overlay applies to a single run only.
	r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "list_files",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), structured(t, r)["fileCount"])
}

func TestServer_InvalidRule(t *testing.T) {
	t.Parallel()

	session := newTestSession(t)

	tcs := map[string]string{
		"empty":    "",
		"multiple": consoleRule + "\n---\n" + globalRule,
		"invalid":  "conditions: [",
	}

	for name, rule := range tcs {
		t.Run(name, func(t *testing.T) {
			r, err := session.CallTool(t.Context(), &sdk.CallToolParams{
				Name:      "simulate_all",
				Arguments: map[string]any{"rule": rule},
			})
			if err == nil {
				require.NotNil(t, r)
				assert.True(t, r.IsError)
			}
		})
	}
}
