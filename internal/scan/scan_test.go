package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// writeTree creates files (with parent directories) under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("log "+f), 0o644))
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestDiscoverOrderAndFilters(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"top.log",
		"notes.md",
		"b/two.log",
		"a/one.log",
		"a/deep/three.txt",
		"a/deep/skip.tmp.log",
		"node_modules/x.log",
		".git/HEAD.log",
	)

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{
			name:    "files before subdirs, names sorted",
			filters: Filters{FileInclude: []string{"*.log", "*.txt"}},
			want: []string{"top.log", ".git/HEAD.log", "a/one.log", "a/deep/skip.tmp.log",
				"a/deep/three.txt", "b/two.log", "node_modules/x.log"},
		},
		{
			name: "excluded dirs and files",
			filters: Filters{
				DirExclude:  []string{"node_modules", ".*"},
				FileInclude: []string{"*.log", "*.txt"},
				FileExclude: []string{"*.tmp.log"},
			},
			want: []string{"top.log", "a/one.log", "a/deep/three.txt", "b/two.log"},
		},
		{
			name:    "dir include prunes traversal",
			filters: Filters{DirInclude: []string{"a"}, FileInclude: []string{"*.log"}},
			want:    []string{"top.log", "a/one.log"},
		},
		{
			name:    "empty include admits everything",
			filters: Filters{DirExclude: []string{"*"}},
			want:    []string{"notes.md", "top.log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(root, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel(t, root, got))
		})
	}
}

func TestDiscoverIsStable(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "z/1.log", "y/2.log", "x/3.log", "0.log")
	f := Filters{FileInclude: []string{"*.log"}}

	first, err := Discover(root, f)
	require.NoError(t, err)
	second, err := Discover(root, f)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDiscoverSingleFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "only.txt")

	got, err := Discover(filepath.Join(root, "only.txt"), Filters{FileInclude: []string{"*.log"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "only.txt")}, got)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), Filters{})
	assert.Error(t, err)
}

func TestPlanDynamicDepth(t *testing.T) {
	root := filepath.Join(t.TempDir(), "results")
	writeTree(t, root, "a/1.log", "a/b/2.log", "a/b/c/3.log")

	files, err := Discover(root, Filters{FileInclude: []string{"*.log"}})
	require.NoError(t, err)

	depth, rows, err := Plan(root, files)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
	require.Len(t, rows, 3)

	want := [][]string{{"a", "", ""}, {"a", "b", ""}, {"a", "b", "c"}}
	for i, r := range rows {
		assert.Equal(t, "results", r.RootLabel)
		assert.Equal(t, want[i], r.PathSegments)
		assert.Equal(t, files[i], r.AbsPath)
		assert.Equal(t, types.StatusPending, r.Status)
	}
	assert.Equal(t, "3.log", rows[2].FileName)
}

func TestPlanFilesAtRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "flat")
	writeTree(t, root, "1.log", "2.log")
	files, err := Discover(root, Filters{})
	require.NoError(t, err)

	depth, rows, err := Plan(root, files)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
	for _, r := range rows {
		assert.Equal(t, "flat", r.RootLabel)
		assert.Empty(t, r.PathSegments)
	}
}

func TestPlanSingleFileRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "job42")
	writeTree(t, dir, "console.log")
	file := filepath.Join(dir, "console.log")

	depth, rows, err := Plan(file, []string{file})
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
	require.Len(t, rows, 1)
	assert.Equal(t, "job42", rows[0].RootLabel)
}
