package types

// Row is one report line: a discovered log file and its classification state.
type Row struct {
	ID            int      // 1-based line in the report; the header is line 1.
	RootLabel     string   // Base name of the scan root.
	PathSegments  []string // Subdirectories between root and file, padded to Schema.Depth.
	FileName      string   // Bare file name.
	AbsPath       string   // Absolute path; unique within a report.
	Status        string   // One of the Status constants or a free-text error label.
	Detail        string   // Matched pattern, model explanation, or error text.
	Content       string   // Excerpt that was classified.
	DebugPrompt   string   // Prompt sent to the model (debug reports only).
	DebugResponse string   // Raw model output (debug reports only).
}

// Result is the outcome committed for a single row.
type Result struct {
	Status   string
	Detail   string
	Content  string
	Prompt   string
	Response string
}

// Apply copies the result fields onto the row. Debug fields are only copied
// when debug is true.
func (r *Row) Apply(res Result, debug bool) {
	r.Status = res.Status
	r.Detail = res.Detail
	r.Content = res.Content
	if debug {
		r.DebugPrompt = res.Prompt
		r.DebugResponse = res.Response
	}
}

// CheckTransition validates that res may be committed over the row's current
// status. A row never goes back to Pending. A settled row only accepts an
// error-kind outcome.
func (r *Row) CheckTransition(res Result) error {
	if res.Status == StatusPending || res.Status == "" {
		return ErrInvalidStatus
	}
	if IsTerminal(r.Status) && !IsError(res.Status) {
		return ErrRowSettled
	}
	return nil
}
