// Package report implements the persisted task table behind types.Store.
// Two backends exist: a CSV file rewritten on every update and an XLSX
// workbook kept in memory and flushed at checkpoints. The backend is chosen
// once, from the file extension, when the report is created or opened.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// Format names a report backend.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnknownFormat, s)
	}
}

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Create writes a new report at path with the given schema and rows, all of
// which must be Pending. Rows receive their IDs here. Create fails with
// types.ErrReportExists if anything already exists at path.
func Create(path string, schema types.Schema, rows []types.Row) (types.Store, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrReportExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat report: %w", err)
	}

	numbered, err := numberRows(rows)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return createCSV(path, schema, numbered)
	default:
		return createXLSX(path, schema, numbered)
	}
}

// Open loads an existing report and re-derives its schema from the header.
func Open(path string) (types.Store, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", types.ErrReportNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("stat report: %w", err)
	}

	switch format {
	case FormatCSV:
		return openCSV(path)
	default:
		return openXLSX(path)
	}
}

// numberRows copies rows, assigns line IDs starting after the header, and
// enforces Pending status and unique paths.
func numberRows(rows []types.Row) ([]types.Row, error) {
	seen := make(map[string]bool, len(rows))
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		if r.Status != types.StatusPending {
			return nil, fmt.Errorf("%w: new row %q has status %q", types.ErrInvalidStatus, r.AbsPath, r.Status)
		}
		if seen[r.AbsPath] {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicatePath, r.AbsPath)
		}
		seen[r.AbsPath] = true
		r.ID = i + 2
		out[i] = r
	}
	return out, nil
}

// table is the in-memory row set shared by both backends.
type table struct {
	schema types.Schema
	rows   []types.Row // rows[i].ID == i+2
}

func (t *table) row(id int) (*types.Row, error) {
	i := id - 2
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("%w: %d", types.ErrRowNotFound, id)
	}
	return &t.rows[i], nil
}

// apply validates and commits res to the row with the given ID.
func (t *table) apply(id int, res types.Result) (*types.Row, error) {
	r, err := t.row(id)
	if err != nil {
		return nil, err
	}
	if err := r.CheckTransition(res); err != nil {
		return nil, fmt.Errorf("row %d: %w", id, err)
	}
	r.Apply(res, t.schema.Debug)
	return r, nil
}

func (t *table) all() []types.Row {
	out := make([]types.Row, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *table) pending() []types.Row {
	var out []types.Row
	for _, r := range t.rows {
		if r.Status == types.StatusPending {
			out = append(out, r)
		}
	}
	return out
}

// load builds the table from a header row and data records.
func load(records [][]string) (*table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", types.ErrSchemaMismatch)
	}
	schema, err := types.ParseHeaders(records[0])
	if err != nil {
		return nil, err
	}
	t := &table{schema: schema, rows: make([]types.Row, 0, len(records)-1)}
	for i, rec := range records[1:] {
		t.rows = append(t.rows, schema.ParseRecord(i+2, rec))
	}
	return t, nil
}
