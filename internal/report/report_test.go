package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

var formats = []Format{FormatCSV, FormatXLSX}

func sampleRows(n int) []types.Row {
	rows := make([]types.Row, n)
	for i := range rows {
		rows[i] = types.Row{
			RootLabel:    "logs",
			PathSegments: []string{"suite", fmt.Sprintf("case%d", i)},
			FileName:     fmt.Sprintf("run%d.log", i),
			AbsPath:      fmt.Sprintf("/data/logs/suite/case%d/run%d.log", i, i),
			Status:       types.StatusPending,
		}
	}
	return rows
}

func reportPath(t *testing.T, f Format) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "report."+string(f))
}

func TestCreateAndOpen(t *testing.T) {
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			path := reportPath(t, f)
			schema := types.Schema{Depth: 2, Debug: true}

			s, err := Create(path, schema, sampleRows(3))
			require.NoError(t, err)
			require.NoError(t, s.Close())

			reopened, err := Open(path)
			require.NoError(t, err)
			defer reopened.Close()

			assert.Equal(t, schema, reopened.Schema())
			pending, err := reopened.Pending()
			require.NoError(t, err)
			require.Len(t, pending, 3)
			for i, r := range pending {
				assert.Equal(t, i+2, r.ID)
				assert.Equal(t, sampleRows(3)[i].AbsPath, r.AbsPath)
				assert.Equal(t, []string{"suite", fmt.Sprintf("case%d", i)}, r.PathSegments)
				assert.Equal(t, types.StatusPending, r.Status)
			}
		})
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			path := reportPath(t, f)
			require.NoError(t, os.WriteFile(path, []byte("occupied"), 0o644))

			_, err := Create(path, types.Schema{}, sampleRows(1))
			assert.ErrorIs(t, err, types.ErrReportExists)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "occupied", string(data), "existing file must not be touched")
		})
	}
}

func TestCreateValidatesRows(t *testing.T) {
	path := reportPath(t, FormatCSV)

	dup := sampleRows(2)
	dup[1].AbsPath = dup[0].AbsPath
	_, err := Create(path, types.Schema{Depth: 2}, dup)
	assert.ErrorIs(t, err, types.ErrDuplicatePath)

	settled := sampleRows(1)
	settled[0].Status = types.StatusSuccess
	_, err = Create(path, types.Schema{Depth: 2}, settled)
	assert.ErrorIs(t, err, types.ErrInvalidStatus)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, types.ErrReportNotFound)

	_, err = Open(filepath.Join(dir, "report.json"))
	assert.ErrorIs(t, err, types.ErrUnknownFormat)

	foreign := filepath.Join(dir, "foreign.csv")
	require.NoError(t, os.WriteFile(foreign, []byte("name,age\nbob,3\n"), 0o644))
	_, err = Open(foreign)
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}

func TestUpdatePersists(t *testing.T) {
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			path := reportPath(t, f)
			s, err := Create(path, types.Schema{Depth: 2}, sampleRows(3))
			require.NoError(t, err)

			require.NoError(t, s.Update(3, types.Result{
				Status:  types.StatusFailure,
				Detail:  "断言失败, \"quoted\"\nsecond line",
				Content: "multi\nline\ncontent",
				Prompt:  "ignored without debug columns",
			}))
			require.NoError(t, s.Finalize())

			reopened, err := Open(path)
			require.NoError(t, err)
			defer reopened.Close()

			rows, err := reopened.Rows()
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, types.StatusPending, rows[0].Status)
			assert.Equal(t, types.StatusFailure, rows[1].Status)
			assert.Equal(t, "断言失败, \"quoted\"\nsecond line", rows[1].Detail)
			assert.Equal(t, "multi\nline\ncontent", rows[1].Content)
			assert.Empty(t, rows[1].DebugPrompt)

			pending, err := reopened.Pending()
			require.NoError(t, err)
			assert.Len(t, pending, 2)
		})
	}
}

func TestUpdateRules(t *testing.T) {
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			s, err := Create(reportPath(t, f), types.Schema{Depth: 2}, sampleRows(2))
			require.NoError(t, err)
			defer s.Close()

			assert.ErrorIs(t, s.Update(99, types.Result{Status: types.StatusSuccess}), types.ErrRowNotFound)
			assert.ErrorIs(t, s.Update(1, types.Result{Status: types.StatusSuccess}), types.ErrRowNotFound, "header line is not a row")
			assert.ErrorIs(t, s.Update(2, types.Result{Status: types.StatusPending}), types.ErrInvalidStatus)

			require.NoError(t, s.Update(2, types.Result{Status: types.StatusSuccess, Detail: "ok"}))
			assert.ErrorIs(t, s.Update(2, types.Result{Status: types.StatusFailure}), types.ErrRowSettled)
			require.NoError(t, s.Update(2, types.Result{Status: types.StatusWorkerError, Detail: "panic"}))

			rows, err := s.Rows()
			require.NoError(t, err)
			assert.Equal(t, types.StatusWorkerError, rows[0].Status)
		})
	}
}

func TestConcurrentUpdates(t *testing.T) {
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			path := reportPath(t, f)
			const n = 40
			s, err := Create(path, types.Schema{Depth: 2}, sampleRows(n))
			require.NoError(t, err)

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					assert.NoError(t, s.Update(id, types.Result{Status: types.StatusSuccess, Detail: fmt.Sprint(id)}))
				}(i + 2)
			}
			wg.Wait()
			require.NoError(t, s.Finalize())

			reopened, err := Open(path)
			require.NoError(t, err)
			defer reopened.Close()
			pending, err := reopened.Pending()
			require.NoError(t, err)
			assert.Empty(t, pending)

			rows, err := reopened.Rows()
			require.NoError(t, err)
			for _, r := range rows {
				assert.Equal(t, fmt.Sprint(r.ID), r.Detail)
			}
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			s, err := Create(reportPath(t, f), types.Schema{}, sampleRows(1))
			require.NoError(t, err)
			require.NoError(t, s.Finalize())
			assert.ErrorIs(t, s.Update(2, types.Result{Status: types.StatusSuccess}), types.ErrStoreClosed)
			assert.NoError(t, s.Close())
		})
	}
}

func TestCSVWritesBOM(t *testing.T) {
	path := reportPath(t, FormatCSV)
	s, err := Create(path, types.Schema{Depth: 0}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\uFEFFRoot Dir,File Name"))
}

func TestCSVUpdateIsImmediatelyDurable(t *testing.T) {
	path := reportPath(t, FormatCSV)
	s, err := Create(path, types.Schema{Depth: 2}, sampleRows(2))
	require.NoError(t, err)
	require.NoError(t, s.Update(2, types.Result{Status: types.StatusSuccess}))

	// Simulate a crash: no Flush, no Finalize.
	reopened, err := Open(path)
	require.NoError(t, err)
	pending, err := reopened.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestXLSXUpdateNeedsFlush(t *testing.T) {
	path := reportPath(t, FormatXLSX)
	s, err := Create(path, types.Schema{Depth: 2}, sampleRows(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Update(2, types.Result{Status: types.StatusSuccess}))

	before, err := Open(path)
	require.NoError(t, err)
	pending, err := before.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 2, "unflushed update is not on disk")
	require.NoError(t, before.Close())

	require.NoError(t, s.Flush())

	after, err := Open(path)
	require.NoError(t, err)
	defer after.Close()
	pending, err = after.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestXLSXFinalizeFormatting(t *testing.T) {
	path := reportPath(t, FormatXLSX)
	s, err := Create(path, types.Schema{Depth: 1}, sampleRows(2))
	require.NoError(t, err)
	require.NoError(t, s.Update(2, types.Result{Status: types.StatusSuccess, Content: strings.Repeat("x", 500)}))
	require.NoError(t, s.Finalize())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	contentCol, err := excelize.ColumnNumberToName(types.Schema{Depth: 1}.ContentCol() + 1)
	require.NoError(t, err)
	visible, err := f.GetColVisible(sheetName, contentCol)
	require.NoError(t, err)
	assert.False(t, visible, "excerpt column is hidden")

	width, err := f.GetColWidth(sheetName, contentCol)
	require.NoError(t, err)
	assert.Equal(t, maxColWidth, width)

	panes, err := f.GetPanes(sheetName)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
}

func TestClampCell(t *testing.T) {
	short := "短文本"
	assert.Equal(t, short, clampCell(short))

	long := strings.Repeat("日", maxCellChars+10)
	got := clampCell(long)
	assert.Equal(t, maxCellChars, len([]rune(got)))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, ".XLSX": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("ods")
	assert.ErrorIs(t, err, types.ErrUnknownFormat)
}
