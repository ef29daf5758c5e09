package types

import "errors"

// Store is a persisted report: one row per discovered file. Implementations
// must be safe for concurrent use.
type Store interface {
	// Path returns the file backing the store.
	Path() string

	// Schema returns the column layout fixed at creation time.
	Schema() Schema

	// Rows returns every row in report order.
	Rows() ([]Row, error)

	// Pending returns the rows whose status is Pending. Row IDs are stable
	// and valid for Update.
	Pending() ([]Row, error)

	// Update commits res to the row with the given ID.
	// Returns ErrRowNotFound for an unknown ID, ErrInvalidStatus when res
	// would revert the row to Pending, and ErrRowSettled when a settled row
	// would receive a non-error outcome.
	Update(id int, res Result) error

	// Flush makes every committed update durable.
	Flush() error

	// Finalize applies cosmetic formatting and performs a final flush.
	Finalize() error

	// Close releases resources without writing.
	Close() error
}

// Report errors.
var (
	ErrReportExists   = errors.New("report already exists")
	ErrReportNotFound = errors.New("report not found")
	ErrSchemaMismatch = errors.New("report header does not match a known schema")
	ErrUnknownFormat  = errors.New("unknown report format")
	ErrRowNotFound    = errors.New("row not found")
	ErrRowSettled     = errors.New("row already has a terminal status")
	ErrInvalidStatus  = errors.New("invalid status value")
	ErrDuplicatePath  = errors.New("duplicate log file path")
	ErrStoreClosed    = errors.New("report is closed")
)

// Run errors.
var (
	ErrNoLogFiles = errors.New("no matching log files found")
)
