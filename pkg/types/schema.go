package types

import (
	"fmt"
	"strings"
)

// Report column headers.
const (
	HeaderRootDir  = "Root Dir"
	HeaderSubDir   = "Sub Dir"
	HeaderFileName = "File Name"
	HeaderPath     = "Log File Path"
	HeaderResult   = "Analysis Result"
	HeaderDetails  = "Analysis Details"
	HeaderContent  = "Log Content"
	HeaderPrompt   = "Final Prompt to LLM"
	HeaderResponse = "LLM Reasoning & Response"
)

// Schema describes the column layout of a report. Depth is the number of
// subdirectory columns and is fixed when the report is created.
type Schema struct {
	Depth int
	Debug bool
}

// Headers returns the header row for the schema in column order.
func (s Schema) Headers() []string {
	h := make([]string, 0, s.Width())
	h = append(h, HeaderRootDir)
	for i := 1; i <= s.Depth; i++ {
		h = append(h, fmt.Sprintf("%s %d", HeaderSubDir, i))
	}
	h = append(h, HeaderFileName, HeaderPath, HeaderResult, HeaderDetails, HeaderContent)
	if s.Debug {
		h = append(h, HeaderPrompt, HeaderResponse)
	}
	return h
}

// Width returns the number of columns.
func (s Schema) Width() int {
	w := 1 + s.Depth + 5
	if s.Debug {
		w += 2
	}
	return w
}

// Column indexes (0-based) of the fixed columns.
func (s Schema) FileNameCol() int { return 1 + s.Depth }
func (s Schema) PathCol() int     { return 2 + s.Depth }
func (s Schema) StatusCol() int   { return 3 + s.Depth }
func (s Schema) DetailCol() int   { return 4 + s.Depth }
func (s Schema) ContentCol() int  { return 5 + s.Depth }
func (s Schema) PromptCol() int   { return 6 + s.Depth }
func (s Schema) ResponseCol() int { return 7 + s.Depth }

// ParseHeaders re-derives the schema from a header row. The headers must be
// exactly what Headers produces for the derived schema.
func ParseHeaders(headers []string) (Schema, error) {
	if len(headers) == 0 {
		return Schema{}, fmt.Errorf("%w: empty header row", ErrSchemaMismatch)
	}
	var s Schema
	for i := 1; i < len(headers); i++ {
		if !strings.HasPrefix(headers[i], HeaderSubDir+" ") {
			break
		}
		s.Depth++
	}
	s.Debug = len(headers) == s.Width()+2
	want := s.Headers()
	if len(want) != len(headers) {
		return Schema{}, fmt.Errorf("%w: got %d columns, want %d", ErrSchemaMismatch, len(headers), len(want))
	}
	for i := range want {
		if headers[i] != want[i] {
			return Schema{}, fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i+1, headers[i], want[i])
		}
	}
	return s, nil
}

// Record flattens a row into cells in schema column order.
func (s Schema) Record(r Row) []string {
	rec := make([]string, 0, s.Width())
	rec = append(rec, r.RootLabel)
	for i := 0; i < s.Depth; i++ {
		if i < len(r.PathSegments) {
			rec = append(rec, r.PathSegments[i])
		} else {
			rec = append(rec, "")
		}
	}
	rec = append(rec, r.FileName, r.AbsPath, r.Status, r.Detail, r.Content)
	if s.Debug {
		rec = append(rec, r.DebugPrompt, r.DebugResponse)
	}
	return rec
}

// ParseRecord builds a row from cells in schema column order. Short records
// are padded with empty cells; spreadsheet readers drop trailing blanks.
func (s Schema) ParseRecord(id int, rec []string) Row {
	cell := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	r := Row{
		ID:           id,
		RootLabel:    cell(0),
		PathSegments: make([]string, s.Depth),
		FileName:     cell(s.FileNameCol()),
		AbsPath:      cell(s.PathCol()),
		Status:       cell(s.StatusCol()),
		Detail:       cell(s.DetailCol()),
		Content:      cell(s.ContentCol()),
	}
	for i := 0; i < s.Depth; i++ {
		r.PathSegments[i] = cell(1 + i)
	}
	if s.Debug {
		r.DebugPrompt = cell(s.PromptCol())
		r.DebugResponse = cell(s.ResponseCol())
	}
	return r
}
