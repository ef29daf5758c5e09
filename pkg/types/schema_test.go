package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaHeaders(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		want   []string
	}{
		{
			name:   "no subdirectories",
			schema: Schema{},
			want:   []string{"Root Dir", "File Name", "Log File Path", "Analysis Result", "Analysis Details", "Log Content"},
		},
		{
			name:   "three subdirectories",
			schema: Schema{Depth: 3},
			want: []string{"Root Dir", "Sub Dir 1", "Sub Dir 2", "Sub Dir 3",
				"File Name", "Log File Path", "Analysis Result", "Analysis Details", "Log Content"},
		},
		{
			name:   "debug columns appended",
			schema: Schema{Depth: 1, Debug: true},
			want: []string{"Root Dir", "Sub Dir 1", "File Name", "Log File Path", "Analysis Result",
				"Analysis Details", "Log Content", "Final Prompt to LLM", "LLM Reasoning & Response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.schema.Headers()
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, tt.schema.Width())
		})
	}
}

func TestParseHeadersRoundTrip(t *testing.T) {
	for _, s := range []Schema{{}, {Depth: 2}, {Depth: 5, Debug: true}, {Debug: true}} {
		got, err := ParseHeaders(s.Headers())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestParseHeadersMismatch(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
	}{
		{name: "empty", headers: nil},
		{name: "foreign sheet", headers: []string{"Name", "Age"}},
		{name: "missing content column", headers: []string{"Root Dir", "File Name", "Log File Path", "Analysis Result", "Analysis Details"}},
		{name: "gap in subdirectories", headers: []string{"Root Dir", "Sub Dir 2", "File Name", "Log File Path", "Analysis Result", "Analysis Details", "Log Content"}},
		{name: "one debug column", headers: append(Schema{}.Headers(), HeaderPrompt)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeaders(tt.headers)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestSchemaRecordPadsSegments(t *testing.T) {
	s := Schema{Depth: 3}
	r := Row{RootLabel: "logs", PathSegments: []string{"a"}, FileName: "x.log", AbsPath: "/logs/a/x.log", Status: StatusPending}

	rec := s.Record(r)
	require.Len(t, rec, s.Width())
	assert.Equal(t, []string{"logs", "a", "", "", "x.log", "/logs/a/x.log", StatusPending, "", ""}, rec)

	back := s.ParseRecord(2, rec)
	assert.Equal(t, 2, back.ID)
	assert.Equal(t, []string{"a", "", ""}, back.PathSegments)
	assert.Equal(t, r.AbsPath, back.AbsPath)
}

func TestSchemaParseRecordShortRecord(t *testing.T) {
	s := Schema{Depth: 1, Debug: true}
	r := s.ParseRecord(3, []string{"logs", "", "x.log", "/logs/x.log", StatusPending})
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, "", r.Detail)
	assert.Equal(t, "", r.DebugResponse)
}
