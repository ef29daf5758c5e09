package report

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// utf8BOM prefixes CSV reports so spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvStore keeps the table in memory and rewrites the whole file on every
// Update. That is O(total rows) per update. It does not scale to very large
// reports, but each update is cheap next to the model call that produced it
// and the file on disk is always current, so Flush has nothing to do.
type csvStore struct {
	mu     sync.Mutex
	path   string
	table  *table
	closed bool
}

func createCSV(path string, schema types.Schema, rows []types.Row) (*csvStore, error) {
	s := &csvStore{path: path, table: &table{schema: schema, rows: rows}}

	// O_EXCL closes the window between the existence check and the write.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrReportExists, path)
		}
		return nil, fmt.Errorf("create report: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := s.encode(w); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("flush report: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sync report: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close report: %w", err)
	}
	return s, nil
}

func openCSV(path string) (*csvStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	t, err := load(records)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &csvStore{path: path, table: t}, nil
}

// encode writes the BOM, the header and every row.
func (s *csvStore) encode(w io.Writer) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(s.table.schema.Headers()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range s.table.rows {
		if err := cw.Write(s.table.schema.Record(r)); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *csvStore) Path() string { return s.path }

func (s *csvStore) Schema() types.Schema { return s.table.schema }

func (s *csvStore) Rows() ([]types.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.all(), nil
}

func (s *csvStore) Pending() ([]types.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.pending(), nil
}

// Update commits one row and rewrites the file atomically. On a write
// failure the in-memory row is rolled back.
func (s *csvStore) Update(id int, res types.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	r, err := s.table.row(id)
	if err != nil {
		return err
	}
	before := *r
	if _, err := s.table.apply(id, res); err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, s.encode); err != nil {
		*r = before
		return fmt.Errorf("rewrite %s: %w", s.path, err)
	}
	return nil
}

func (s *csvStore) Flush() error { return nil }

func (s *csvStore) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *csvStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
