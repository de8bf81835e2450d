package log_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesim/pkg/log"
)

func entries(r *log.Ring) []string {
	var out []string
	for _, e := range r.Entries() {
		out = append(out, string(e))
	}

	return out
}

func TestRing_Write(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		writes      []string
		want        []string
		capacity    int
		wantDropped int
	}{
		"empty": {
			capacity: 3,
		},
		"below capacity": {
			capacity: 3,
			writes:   []string{"a", "b"},
			want:     []string{"a", "b"},
		},
		"at capacity": {
			capacity: 3,
			writes:   []string{"a", "b", "c"},
			want:     []string{"a", "b", "c"},
		},
		"wraps around": {
			capacity:    3,
			writes:      []string{"a", "b", "c", "d", "e"},
			want:        []string{"c", "d", "e"},
			wantDropped: 2,
		},
		"empty writes are ignored": {
			capacity: 2,
			writes:   []string{"a", "", "b"},
			want:     []string{"a", "b"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := log.NewRing(tc.capacity)
			for _, w := range tc.writes {
				n, err := r.Write([]byte(w))
				require.NoError(t, err)
				assert.Equal(t, len(w), n)
			}

			assert.Equal(t, tc.want, entries(r))
			assert.Equal(t, len(tc.want), r.Len())
			assert.Equal(t, tc.wantDropped, r.Dropped())
		})
	}
}

func TestNewRing_DefaultCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, log.DefaultRingCapacity, log.NewRing(0).Cap())
	assert.Equal(t, log.DefaultRingCapacity, log.NewRing(-1).Cap())
	assert.Equal(t, 7, log.NewRing(7).Cap())
}

func TestRing_CopiesInput(t *testing.T) {
	t.Parallel()

	r := log.NewRing(2)
	p := []byte("abc")

	_, err := r.Write(p)
	require.NoError(t, err)

	p[0] = 'x'
	got := r.Entries()
	got[0][1] = 'y'

	assert.Equal(t, []string{"abc"}, entries(r))
}

func TestRing_WriteTo(t *testing.T) {
	t.Parallel()

	r := log.NewRing(2)
	for _, s := range []string{"one\n", "two\n", "three\n"} {
		_, err := r.Write([]byte(s))
		require.NoError(t, err)
	}

	var buf bytes.Buffer

	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "two\nthree\n", buf.String())
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, 2, r.Len())
}

func TestRing_Flush(t *testing.T) {
	t.Parallel()

	r := log.NewRing(2)
	for _, s := range []string{"a", "b", "c"} {
		_, err := r.Write([]byte(s))
		require.NoError(t, err)
	}

	var buf bytes.Buffer

	_, err := r.Flush(&buf)
	require.NoError(t, err)
	assert.Equal(t, "bc", buf.String())
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Dropped())

	buf.Reset()

	_, err = r.Flush(&buf)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

var errWrite = errors.New("boom")

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWrite
}

func TestRing_WriteToError(t *testing.T) {
	t.Parallel()

	r := log.NewRing(2)
	_, err := r.Write([]byte("a"))
	require.NoError(t, err)

	_, err = r.WriteTo(failingWriter{})
	require.ErrorIs(t, err, errWrite)
}

func TestRing_Concurrent(t *testing.T) {
	t.Parallel()

	r := log.NewRing(50)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			for j := range 20 {
				_, err := fmt.Fprintf(r, "%d-%d", i, j)
				assert.NoError(t, err)
			}
		})
	}

	wg.Go(func() {
		for range 10 {
			_, err := r.WriteTo(&bytes.Buffer{})
			assert.NoError(t, err)
		}
	})

	wg.Wait()

	assert.Equal(t, 50, r.Len())
	assert.Equal(t, 150, r.Dropped())
}

func TestRing_AsHandlerOutput(t *testing.T) {
	t.Parallel()

	r := log.NewRing(10)

	h, err := log.CreateHandlerWithStrings(r, "info", "json")
	require.NoError(t, err)

	logger := slog.New(h)
	logger.Info("loaded project", slog.Int("files", 3))
	logger.Debug("hidden")

	got := entries(r)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `"msg":"loaded project"`)
	assert.Contains(t, got[0], `"files":3`)
}
