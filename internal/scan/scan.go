// Package scan discovers log files under a root and plans the initial report
// rows for a fresh run.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// Filters selects directories and files by glob. An empty include list
// admits everything; exclude is applied after include.
type Filters struct {
	DirInclude  []string
	DirExclude  []string
	FileInclude []string
	FileExclude []string
}

// FiltersFromConfig extracts the glob lists from the run configuration.
func FiltersFromConfig(cfg types.Config) Filters {
	return Filters{
		DirInclude:  cfg.DirInclude,
		DirExclude:  cfg.DirExclude,
		FileInclude: cfg.FileInclude,
		FileExclude: cfg.FileExclude,
	}
}

// admit applies include-then-exclude to name.
func admit(name string, include, exclude []string) bool {
	if len(include) > 0 && !matchAny(name, include) {
		return false
	}
	return !matchAny(name, exclude)
}

func matchAny(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

// Discover walks root top-down and returns the absolute paths of admitted
// files. In each directory the admitted files come first, sorted by name,
// followed by the contents of each admitted subdirectory, also by name.
// Rejected directories are never entered. A root that is a regular file is
// returned as the only result, without filtering.
func Discover(root string, f Filters) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return []string{abs}, nil
	}
	var out []string
	if err := walk(abs, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(dir string, f Filters, out *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	var subdirs []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
			if admit(name, f.DirInclude, f.DirExclude) {
				subdirs = append(subdirs, name)
			}
		case e.Type().IsRegular():
			if admit(name, f.FileInclude, f.FileExclude) {
				*out = append(*out, filepath.Join(dir, name))
			}
		}
	}
	for _, name := range subdirs {
		if err := walk(filepath.Join(dir, name), f, out); err != nil {
			return err
		}
	}
	return nil
}

// Plan builds one Pending row per file and the schema depth: the maximum
// number of subdirectories between root and any file. Segments of
// shallower rows are padded with empty strings. Files outside root are
// labelled by their own parent directory.
func Plan(root string, files []string) (int, []types.Row, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve root: %w", err)
	}
	base := absRoot
	if info, err := os.Stat(absRoot); err == nil && !info.IsDir() {
		base = filepath.Dir(absRoot)
	}

	rows := make([]types.Row, 0, len(files))
	depth := 0
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return 0, nil, fmt.Errorf("resolve %s: %w", file, err)
		}
		label, segments := locate(base, abs)
		depth = max(depth, len(segments))
		rows = append(rows, types.Row{
			RootLabel:    label,
			PathSegments: segments,
			FileName:     filepath.Base(abs),
			AbsPath:      abs,
			Status:       types.StatusPending,
		})
	}
	for i := range rows {
		rows[i].PathSegments = pad(rows[i].PathSegments, depth)
	}
	return depth, rows, nil
}

func locate(base, abs string) (string, []string) {
	rel, err := filepath.Rel(base, filepath.Dir(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(filepath.Dir(abs)), nil
	}
	if rel == "." {
		return filepath.Base(base), nil
	}
	return filepath.Base(base), strings.Split(rel, string(filepath.Separator))
}

func pad(segments []string, depth int) []string {
	out := make([]string, depth)
	copy(out, segments)
	return out
}
