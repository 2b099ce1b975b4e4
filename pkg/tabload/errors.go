package tabload

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// File-level errors (ErrParse, ErrTransfer) are recorded in the run summary
// and never abort a run. Run-level errors (ErrSchema, ErrConnectionFailed,
// ErrInvalidConfig) abort the run before the summary is rendered.
//
// Example usage:
//
//	summary, err := loader.Run(ctx, config)
//	if errors.Is(err, tabload.ErrPartialFailure) {
//	    // summary is complete, at least one file failed
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoFiles indicates discovery found no CSV or XLSX files.
	// Run reports it to the operator and returns no error.
	ErrNoFiles = errors.New("no files found")

	// ErrParse indicates a file could not be read or is malformed.
	ErrParse = errors.New("parse error")

	// ErrSchema indicates the destination table could not be created, altered or truncated.
	ErrSchema = errors.New("schema error")

	// ErrTableMissing indicates the destination table does not exist.
	ErrTableMissing = errors.New("table does not exist")

	// ErrTransfer indicates the bulk copy of a batch failed and was rolled back.
	ErrTransfer = errors.New("transfer error")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrPartialFailure indicates the run completed but one or more files failed.
	ErrPartialFailure = errors.New("one or more files failed to load")
)

// usageErrorPatterns are message fragments produced by cobra/pflag for CLI misuse.
var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts 1 arg(s)",
	"required flag",
	"invalid argument",
	"missing required argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrSchema):
		return ExitSchemaError
	case errors.Is(err, ErrPartialFailure):
		return ExitPartialFailure
	}

	errStr := err.Error()
	for _, pattern := range usageErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
