package valuepath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/pkg/valuepath"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		path string
		want []string
	}{
		"root marker":      {path: "$.a.b[0].c", want: []string{"a", "b", "0", "c"}},
		"no root marker":   {path: "a.b[0].c", want: []string{"a", "b", "0", "c"}},
		"consecutive dots": {path: "$..a[[1]]", want: []string{"a", "1"}},
		"bare root":        {path: "$", want: []string{}},
		"empty":            {path: "", want: []string{}},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, valuepath.Tokenize(tc.path))
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"items": []any{
			map[string]any{"name": "first"},
		},
		"fileName": "App.tsx",
		"count":    3,
		"nothing":  nil,
	}

	tcs := map[string]struct {
		value  any
		want   any
		path   string
		wantOK bool
	}{
		"nested index": {
			value: data, path: "$.items[0].name",
			want: "first", wantOK: true,
		},
		"without root marker": {
			value: data, path: "items[0].name",
			want: "first", wantOK: true,
		},
		"top-level field": {
			value: data, path: "$.fileName",
			want: "App.tsx", wantOK: true,
		},
		"out of range index": {
			value: data, path: "$.items[5].name",
		},
		"negative index": {
			value: data, path: "$.items[-1]",
		},
		"missing field": {
			value: data, path: "$.missing.deeper",
		},
		"through null": {
			value: data, path: "$.nothing.x",
		},
		"through scalar": {
			value: data, path: "$.count.x",
		},
		"non-numeric index on slice": {
			value: data, path: "$.items.name",
		},
		"nil root": {
			value: nil, path: "$.a",
		},
		"typed slice": {
			value: []string{"a", "b"}, path: "[1]",
			want: "b", wantOK: true,
		},
		"any-keyed map": {
			value: map[any]any{"k": map[any]any{uint64(1): "one"}}, path: "$.k.1",
			want: "one", wantOK: true,
		},
		"struct json tag": {
			value: struct {
				Name string `json:"fileName"`
			}{Name: "x.ts"},
			path: "$.fileName",
			want: "x.ts", wantOK: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, ok := valuepath.Get(tc.value, tc.path)
			require.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGet_EmptyPathReturnsValue(t *testing.T) {
	t.Parallel()

	for _, v := range []any{nil, 1, "s", []any{1}, map[string]any{"a": 1}} {
		got, ok := valuepath.Get(v, "")
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}
