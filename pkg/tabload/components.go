package tabload

import "context"

// FileScanner discovers loadable files.
// Implementations must be safe for concurrent use by multiple goroutines.
type FileScanner interface {
	// Discover recursively lists .csv and .xlsx files under root in traversal order.
	// When nothing is found the error wraps ErrNoFiles; callers report it
	// and treat the run as complete.
	Discover(root string) ([]FileDescriptor, error)
}

// BatchReader parses a discovered file into a normalized Batch.
type BatchReader interface {
	// Read returns an error wrapping ErrParse when the file is unreadable or malformed.
	Read(file FileDescriptor) (*Batch, error)
}

// TableManager manages the lifecycle of the destination table.
// Each method acquires and releases its own pooled connection.
type TableManager interface {
	// EnsureTable creates the table if it does not exist. It never alters an existing table.
	EnsureTable(ctx context.Context, columns []ColumnDef) error

	// ClearTable truncates the table. Returns an error wrapping ErrTableMissing
	// when the table does not exist.
	ClearTable(ctx context.Context) error

	// Columns returns the current column names of the table in ordinal order.
	Columns(ctx context.Context) ([]string, error)

	// AddColumns adds the given columns if they are not already present.
	AddColumns(ctx context.Context, columns []ColumnDef) error

	// ExistingKeys returns composite keys built from keyColumns for every row in the table.
	ExistingKeys(ctx context.Context, keyColumns []string) (map[string]struct{}, error)

	// CountRows returns the number of rows in the table.
	CountRows(ctx context.Context) (int64, error)
}

// Uploader moves every row of a batch into the destination table in one
// transaction using a single streaming bulk copy.
type Uploader interface {
	Upload(ctx context.Context, batch *Batch) (int64, error)
}

// Reporter renders per-file progress and the final summary.
type Reporter interface {
	// NoFiles is called when discovery finds nothing to load.
	NoFiles(root string)

	// Discovered is called once with the number of files to process.
	Discovered(total int)

	// FileFinished is called after each file's result is recorded.
	// index is 1-based.
	FileFinished(index, total int, result FileResult)

	// Summary renders all results. Called exactly once per non-empty run.
	Summary(summary *RunSummary)
}
