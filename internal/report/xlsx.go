package report

import (
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

const (
	sheetName = "分析报告"

	// maxCellChars is the spreadsheet limit on characters in one cell.
	maxCellChars = 32767

	maxColWidth = 60.0
)

// Status fill colors.
const (
	fillSuccess = "C6EFCE"
	fillFailure = "FFC7CE"
	fillError   = "FFEB9C"
)

// xlsxStore mutates an in-memory workbook and writes it to disk on Flush.
// A crash loses at most the updates since the last Flush.
type xlsxStore struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	table  *table
	styles xlsxStyles
	dirty  bool
	closed bool
}

type xlsxStyles struct {
	header  int
	wrap    int
	success int
	failure int
	errored int
}

func createXLSX(path string, schema types.Schema, rows []types.Row) (*xlsxStore, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	s := &xlsxStore{path: path, file: f, table: &table{schema: schema, rows: rows}}
	if err := s.initStyles(); err != nil {
		f.Close()
		return nil, err
	}

	headers := schema.Headers()
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, s.styles.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}
	for _, r := range rows {
		if err := s.writeRow(r); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := s.freezeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.save(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func openXLSX(path string) (*xlsxStore, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("open %s: %w: workbook has no sheets", path, types.ErrSchemaMismatch)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read rows: %w", err)
	}
	t, err := load(records)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &xlsxStore{path: path, file: f, table: t}
	if sheets[0] != sheetName {
		if err := f.SetSheetName(sheets[0], sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}
	if err := s.initStyles(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *xlsxStore) initStyles() error {
	wrap := &excelize.Alignment{WrapText: true, Vertical: "top"}
	fill := func(color string) *excelize.Style {
		return &excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: wrap,
		}
	}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.styles.header, &excelize.Style{Font: &excelize.Font{Bold: true}, Alignment: wrap}},
		{&s.styles.wrap, &excelize.Style{Alignment: wrap}},
		{&s.styles.success, fill(fillSuccess)},
		{&s.styles.failure, fill(fillFailure)},
		{&s.styles.errored, fill(fillError)},
	}
	for _, d := range defs {
		id, err := s.file.NewStyle(d.style)
		if err != nil {
			return fmt.Errorf("create style: %w", err)
		}
		*d.dst = id
	}
	return nil
}

func (s *xlsxStore) freezeHeader() error {
	err := s.file.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	return nil
}

// writeRow writes every cell of r.
func (s *xlsxStore) writeRow(r types.Row) error {
	rec := s.table.schema.Record(r)
	cells := make([]any, len(rec))
	for i, v := range rec {
		cells[i] = clampCell(v)
	}
	start, err := excelize.CoordinatesToCellName(1, r.ID)
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(sheetName, start, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", r.ID, err)
	}
	return nil
}

type cellValue struct {
	col   int
	value string
}

// writeResult writes the mutable cells of r and colors its status cell.
func (s *xlsxStore) writeResult(r types.Row) error {
	sc := s.table.schema
	cols := []cellValue{
		{sc.StatusCol(), r.Status},
		{sc.DetailCol(), r.Detail},
		{sc.ContentCol(), r.Content},
	}
	if sc.Debug {
		cols = append(cols, cellValue{sc.PromptCol(), r.DebugPrompt}, cellValue{sc.ResponseCol(), r.DebugResponse})
	}
	for _, c := range cols {
		cell, err := excelize.CoordinatesToCellName(c.col+1, r.ID)
		if err != nil {
			return err
		}
		if err := s.file.SetCellStr(sheetName, cell, clampCell(c.value)); err != nil {
			return fmt.Errorf("write cell %s: %w", cell, err)
		}
	}
	cell, err := excelize.CoordinatesToCellName(sc.StatusCol()+1, r.ID)
	if err != nil {
		return err
	}
	return s.file.SetCellStyle(sheetName, cell, cell, s.statusStyle(r.Status))
}

func (s *xlsxStore) statusStyle(status string) int {
	switch status {
	case types.StatusSuccess:
		return s.styles.success
	case types.StatusFailure:
		return s.styles.failure
	default:
		return s.styles.errored
	}
}

// clampCell truncates v to the spreadsheet cell limit.
func clampCell(v string) string {
	if utf8.RuneCountInString(v) <= maxCellChars {
		return v
	}
	n := 0
	for i := range v {
		if n == maxCellChars {
			return v[:i]
		}
		n++
	}
	return v
}

func (s *xlsxStore) save() error {
	err := writeFileAtomic(s.path, func(w io.Writer) error {
		_, err := s.file.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

func (s *xlsxStore) Path() string { return s.path }

func (s *xlsxStore) Schema() types.Schema { return s.table.schema }

func (s *xlsxStore) Rows() ([]types.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.all(), nil
}

func (s *xlsxStore) Pending() ([]types.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.pending(), nil
}

// Update mutates the workbook in memory only. Call Flush to persist.
func (s *xlsxStore) Update(id int, res types.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	r, err := s.table.apply(id, res)
	if err != nil {
		return err
	}
	s.dirty = true
	return s.writeResult(*r)
}

func (s *xlsxStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	if !s.dirty {
		return nil
	}
	return s.save()
}

// Finalize sizes and wraps columns, freezes the header row, hides the
// excerpt column, saves, and closes the workbook. Formatting errors are
// best effort; the final save is not.
func (s *xlsxStore) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	fmtErr := s.format()
	saveErr := s.save()
	s.closed = true
	closeErr := s.file.Close()
	switch {
	case saveErr != nil:
		return saveErr
	case closeErr != nil:
		return fmt.Errorf("close workbook: %w", closeErr)
	case fmtErr != nil:
		return fmt.Errorf("format report: %w", fmtErr)
	}
	return nil
}

func (s *xlsxStore) format() error {
	sc := s.table.schema
	widths := make([]int, sc.Width())
	for i, h := range sc.Headers() {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, r := range s.table.rows {
		for i, v := range sc.Record(r) {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}
	lastRow := len(s.table.rows) + 1
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := min(float64(w+2)*1.2, maxColWidth)
		if err := s.file.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
		if i != sc.StatusCol() && lastRow > 1 {
			if err := s.file.SetCellStyle(sheetName, col+"2", fmt.Sprintf("%s%d", col, lastRow), s.styles.wrap); err != nil {
				return err
			}
		}
	}
	content, err := excelize.ColumnNumberToName(sc.ContentCol() + 1)
	if err != nil {
		return err
	}
	if err := s.file.SetColVisible(sheetName, content, false); err != nil {
		return err
	}
	return s.freezeHeader()
}

func (s *xlsxStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
