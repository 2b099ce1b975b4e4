package tabload

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // All files loaded (or nothing to load)
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to database
	ExitSchemaError     = 13 // Destination table could not be prepared
	ExitPartialFailure  = 15 // Run finished, at least one file failed
)

// Connection pool bounds. The loader never checks out more than one
// connection at a time; the upper bound caps what a caller may configure.
const (
	MinPoolConns     = 1
	MaxPoolConns     = 10
	DefaultPoolConns = MaxPoolConns
)

const (
	// DefaultSchema is the schema used when no schema is configured.
	DefaultSchema = "public"

	// DefaultEncoding detects the character encoding of each CSV file.
	DefaultEncoding = "auto"

	// DefaultTimeout bounds an entire load run.
	DefaultTimeout = 30 * time.Minute

	// DefaultManagementDB is the database used when a connection string names none.
	DefaultManagementDB = "postgres"

	// KeySeparator joins key column values into a composite deduplication key.
	// The ASCII unit separator cannot be confused with text inside a cell.
	KeySeparator = "\x1f"

	// NotApplicable is shown in place of a row count for failed files.
	NotApplicable = "N/A"

	// MaxErrorPreviewLength is the maximum number of characters of an error
	// message kept in a summary record.
	MaxErrorPreviewLength = 300
)
