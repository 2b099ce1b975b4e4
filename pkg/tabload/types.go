package tabload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoadMode controls what happens to existing rows of the destination table.
type LoadMode string

const (
	// ModeReplace truncates the destination table once before any file is loaded.
	ModeReplace LoadMode = "replace"
	// ModeAppend keeps existing rows.
	ModeAppend LoadMode = "append"
)

// ParseLoadMode converts a user-supplied mode, defaulting to ModeReplace.
func ParseLoadMode(s string) (LoadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeReplace):
		return ModeReplace, nil
	case string(ModeAppend):
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("unknown load mode %q (expected replace or append): %w", s, ErrInvalidConfig)
	}
}

// LoadConfig contains all parameters needed for a load run.
type LoadConfig struct {
	// SourcePath is the root directory scanned for .csv and .xlsx files
	SourcePath string

	// Connection holds the resolved connection parameters
	Connection *ConnectionConfig

	// Schema and Table identify the destination relation
	Schema string
	Table  string

	// Mode selects truncate-once (replace) or append behavior
	Mode LoadMode

	// InferTypes creates new tables with inferred column types instead of TEXT
	InferTypes bool

	// KeyColumns, when set, skip rows whose composite key is already loaded
	KeyColumns []string

	// Sheet is the XLSX sheet to read; empty means the first sheet
	Sheet string

	// Encoding is the character encoding of CSV files
	Encoding string

	// SkipDuplicateFiles skips files whose content matches an earlier file
	SkipDuplicateFiles bool

	// MaxConns caps the connection pool size (1..10)
	MaxConns int

	// Timeout is the global timeout for the entire run
	Timeout time.Duration

	// Verbose enables detailed logging
	Verbose bool
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.SourcePath == "" {
		errs = append(errs, fmt.Errorf("SourcePath is required: %w", ErrInvalidConfig))
	}

	if strings.TrimSpace(c.Table) == "" {
		errs = append(errs, fmt.Errorf("table name is required: %w", ErrInvalidConfig))
	}

	if c.Connection == nil {
		errs = append(errs, fmt.Errorf("connection configuration is required: %w", ErrInvalidConfig))
	}

	if c.Mode != "" && c.Mode != ModeReplace && c.Mode != ModeAppend {
		errs = append(errs, fmt.Errorf("unknown load mode %q: %w", c.Mode, ErrInvalidConfig))
	}

	if c.MaxConns != 0 && (c.MaxConns < MinPoolConns || c.MaxConns > MaxPoolConns) {
		errs = append(errs, fmt.Errorf("max connections must be between %d and %d, got %d: %w",
			MinPoolConns, MaxPoolConns, c.MaxConns, ErrInvalidConfig))
	}

	for _, k := range c.KeyColumns {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Errorf("key columns cannot be blank: %w", ErrInvalidConfig))
			break
		}
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// MaxConns caps the pool size; zero means DefaultPoolConns
	MaxConns int

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AuthMethodAWSIAM
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance)
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// FileFormat identifies how a discovered file is parsed.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatCSV
	FormatXLSX
)

func (f FileFormat) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// FormatForExtension maps a file extension (with leading dot, any case) to a format.
func FormatForExtension(ext string) FileFormat {
	switch strings.ToLower(ext) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// FileDescriptor describes a file found during discovery.
// Paths in RelativePath use forward slashes.
type FileDescriptor struct {
	Path         string // Absolute path used for reading
	RelativePath string // Relative to the source root: "2024/jan/stock.csv"
	Name         string // Filename only: "stock.csv"
	Format       FileFormat
	SizeBytes    int64
	ModifiedAt   time.Time
	Checksum     string // SHA-256 of raw content
}

// Batch is one file's parsed content held in memory before upload.
// Columns are normalized; every cell is text.
type Batch struct {
	Source  FileDescriptor
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows in the batch.
func (b *Batch) RowCount() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// ColumnIndex returns the position of a normalized column, or -1.
func (b *Batch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnType is the storage type chosen for a destination column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeTimestamp
)

// String returns the policy name of the type.
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// SQL returns the PostgreSQL type used for the column.
func (t ColumnType) SQL() string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// ColumnDef is a destination column name with its type.
type ColumnDef struct {
	Name string
	Type ColumnType
}

// TextColumns returns a TEXT column definition for every name.
func TextColumns(names []string) []ColumnDef {
	defs := make([]ColumnDef, len(names))
	for i, n := range names {
		defs[i] = ColumnDef{Name: n, Type: TypeText}
	}
	return defs
}

// FileStatus is the outcome of one file's load attempt.
type FileStatus int

const (
	StatusLoaded FileStatus = iota
	StatusFailed
	StatusSkipped
)

func (s FileStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// FileResult is the summary record of one file. Rows is -1 when not applicable.
type FileResult struct {
	File     FileDescriptor
	Status   FileStatus
	Rows     int64
	Message  string
	Err      error
	Duration time.Duration
}

// RowsText renders the row count, or NotApplicable when no rows were loaded due to failure.
func (r FileResult) RowsText() string {
	if r.Rows < 0 {
		return NotApplicable
	}
	return fmt.Sprintf("%d", r.Rows)
}

// RunSummary accumulates per-file results in processing order.
type RunSummary struct {
	RunID       uuid.UUID
	Schema      string
	Table       string
	Results     []FileResult
	TableRows   int64 // -1 when the count could not be read
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewRunSummary starts a summary for a run against schema.table.
func NewRunSummary(schema, table string) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New(),
		Schema:    schema,
		Table:     table,
		TableRows: -1,
		StartedAt: time.Now(),
	}
}

// Record appends a result. Records are never modified after being appended.
func (s *RunSummary) Record(r FileResult) {
	s.Results = append(s.Results, r)
}

// Counts returns the number of loaded, failed and skipped files.
func (s *RunSummary) Counts() (loaded, failed, skipped int) {
	for _, r := range s.Results {
		switch r.Status {
		case StatusLoaded:
			loaded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return loaded, failed, skipped
}

// TotalRows returns the number of rows inserted across all loaded files.
func (s *RunSummary) TotalRows() int64 {
	var total int64
	for _, r := range s.Results {
		if r.Status == StatusLoaded && r.Rows > 0 {
			total += r.Rows
		}
	}
	return total
}

// HasFailures reports whether any file failed.
func (s *RunSummary) HasFailures() bool {
	_, failed, _ := s.Counts()
	return failed > 0
}

// QualifiedTable returns "schema.table" for display.
func (s *RunSummary) QualifiedTable() string {
	if s.Schema == "" {
		return s.Table
	}
	return s.Schema + "." + s.Table
}
