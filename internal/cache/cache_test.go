package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/logtriage/internal/llm"
	"github.com/mesh-intelligence/logtriage/pkg/types"
)

type countingClassifier struct {
	calls   int
	outcome llm.Outcome
	err     error
}

func (c *countingClassifier) Classify(context.Context, string) (llm.Outcome, error) {
	c.calls++
	return c.outcome, c.err
}

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyScoping(t *testing.T) {
	k := Key("m", "d", "content")
	assert.Equal(t, k, Key("m", "d", "content"))
	assert.NotEqual(t, k, Key("m2", "d", "content"))
	assert.NotEqual(t, k, Key("m", "d2", "content"))
	assert.NotEqual(t, k, Key("m", "d", "content2"))
	assert.NotEqual(t, Key("ab", "c", "x"), Key("a", "bc", "x"))
}

func TestGetPut(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Entry{Status: types.StatusFailure, Detail: "npe", Response: "raw"}
	require.NoError(t, c.Put(ctx, "k", want))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.Put(ctx, "k", Entry{Status: types.StatusSuccess, Detail: "ok"}))
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCachePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "k", Entry{Status: types.StatusSuccess, Detail: "ok"}))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, FileName), c.Path())
}

func TestCachedClassifierHit(t *testing.T) {
	ctx := context.Background()
	inner := &countingClassifier{outcome: llm.Outcome{Status: types.StatusSuccess, Detail: "ok", Prompt: "p", Response: "r"}}
	cl := Wrap(inner, openCache(t), "model", "digest", nil)

	first, err := cl.Classify(ctx, "log text")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := cl.Classify(ctx, "log text")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, types.StatusSuccess, second.Status)
	assert.Equal(t, "ok", second.Detail)
	assert.Equal(t, "r", second.Response)
	assert.Equal(t, 1, inner.calls)

	_, err = cl.Classify(ctx, "other text")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedClassifierSkipsErrors(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		outcome llm.Outcome
		err     error
	}{
		{"api error", llm.Outcome{Status: types.StatusAPIError, Detail: "401"}, errors.New("401")},
		{"unparseable", llm.Outcome{Status: types.StatusUnparseable, Detail: types.UnparseableDetail}, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inner := &countingClassifier{outcome: tc.outcome, err: tc.err}
			cl := Wrap(inner, openCache(t), "m", "d", nil)

			for i := 0; i < 2; i++ {
				out, err := cl.Classify(ctx, "x")
				assert.Equal(t, tc.err, err)
				assert.False(t, out.Cached)
			}
			assert.Equal(t, 2, inner.calls)
		})
	}
}
