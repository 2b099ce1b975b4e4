package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vvka-141/tabload/internal/db"
	"github.com/vvka-141/tabload/internal/db/table"
	"github.com/vvka-141/tabload/internal/files/reader"
	"github.com/vvka-141/tabload/internal/schema"
	"github.com/vvka-141/tabload/internal/transfer"
	"github.com/vvka-141/tabload/pkg/tabload"
)

type connectFunc func(ctx context.Context, connConfig *tabload.ConnectionConfig) (tabload.DBConnection, func(), error)

// LoadService runs loads.
// Thread-Safety: NOT safe for concurrent Run() calls on the same instance.
type LoadService struct {
	connectorFactory func(*tabload.ConnectionConfig) (tabload.Connector, error)
	scanner          tabload.FileScanner
	reporter         tabload.Reporter
	logger           tabload.Logger

	connect     connectFunc
	newReader   func(cfg tabload.LoadConfig) (tabload.BatchReader, error)
	newTables   func(conn tabload.DBConnection, schema, table string) tabload.TableManager
	newUploader func(conn tabload.DBConnection, schema, table string) tabload.Uploader
}

// NewLoadService creates a LoadService. It panics on nil dependencies.
func NewLoadService(
	connectorFactory func(*tabload.ConnectionConfig) (tabload.Connector, error),
	scanner tabload.FileScanner,
	reporter tabload.Reporter,
	logger tabload.Logger,
) *LoadService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if scanner == nil {
		panic("scanner cannot be nil")
	}
	if reporter == nil {
		panic("reporter cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	s := &LoadService{
		connectorFactory: connectorFactory,
		scanner:          scanner,
		reporter:         reporter,
		logger:           logger,
	}
	s.connect = s.defaultConnect
	s.newReader = func(cfg tabload.LoadConfig) (tabload.BatchReader, error) {
		return reader.NewReader(reader.Options{Sheet: cfg.Sheet, Encoding: cfg.Encoding})
	}
	s.newTables = func(conn tabload.DBConnection, schemaName, tableName string) tabload.TableManager {
		return table.New(conn, schemaName, tableName)
	}
	s.newUploader = func(conn tabload.DBConnection, schemaName, tableName string) tabload.Uploader {
		return transfer.NewCopier(conn, schemaName, tableName, s.logger)
	}
	return s
}

func (s *LoadService) defaultConnect(ctx context.Context, connConfig *tabload.ConnectionConfig) (tabload.DBConnection, func(), error) {
	connector, err := s.connectorFactory(connConfig)
	if err != nil {
		return nil, nil, err
	}

	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		if closer, ok := connector.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Verbose("Closing connector: %v", err)
			}
		}
	}
	return db.NewPoolAdapter(pool), cleanup, nil
}

// run holds the state of one Run call.
type run struct {
	cfg      tabload.LoadConfig
	reader   tabload.BatchReader
	tables   tabload.TableManager
	uploader tabload.Uploader
	summary  *tabload.RunSummary

	columns    map[string]struct{}
	keyColumns []string
	keys       map[string]struct{}
	checksums  map[string]string
}

// Run loads every discovered file into the destination table.
//
// An empty source directory is reported and returns a summary with no
// results and a nil error. When at least one file failed the complete
// summary is returned together with an error wrapping ErrPartialFailure.
// Run-level failures return a nil summary.
func (s *LoadService) Run(ctx context.Context, cfg tabload.LoadConfig) (*tabload.RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == "" {
		cfg.Mode = tabload.ModeReplace
	}
	if cfg.Schema == "" {
		cfg.Schema = tabload.DefaultSchema
	}

	batchReader, err := s.newReader(cfg)
	if err != nil {
		return nil, err
	}

	summary := tabload.NewRunSummary(cfg.Schema, cfg.Table)
	files, err := s.scanner.Discover(cfg.SourcePath)
	if err != nil && !errors.Is(err, tabload.ErrNoFiles) {
		return nil, err
	}
	if len(files) == 0 {
		s.reporter.NoFiles(cfg.SourcePath)
		summary.CompletedAt = time.Now()
		return summary, nil
	}
	s.reporter.Discovered(len(files))
	s.logger.Verbose("Run %s: %d files, %s mode, destination %s", summary.RunID, len(files), cfg.Mode, summary.QualifiedTable())

	connConfig := *cfg.Connection
	if cfg.MaxConns != 0 {
		connConfig.MaxConns = cfg.MaxConns
	}
	conn, cleanup, err := s.connect(ctx, &connConfig)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	r := &run{
		cfg:       cfg,
		reader:    batchReader,
		tables:    s.newTables(conn, cfg.Schema, cfg.Table),
		uploader:  s.newUploader(conn, cfg.Schema, cfg.Table),
		summary:   summary,
		checksums: make(map[string]string),
	}

	pre, sample := s.readSample(r, files)
	if sample == nil {
		s.logger.Error("No file could be parsed; the destination table was not touched")
		for i, res := range pre {
			s.record(r, i, len(files), res)
		}
		return s.finish(ctx, r, false)
	}

	if err := s.prepareTable(ctx, r, sample.batch); err != nil {
		return nil, err
	}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load interrupted before %s: %w", file.RelativePath, err)
		}

		var res tabload.FileResult
		switch {
		case i < sample.index:
			res = pre[i]
			if dup, ok := s.duplicateOf(r, file); ok {
				res = skippedDuplicate(file, dup)
			}
		case i == sample.index:
			res, err = s.loadFile(ctx, r, file, sample.batch, sample.elapsed)
		default:
			res, err = s.loadFile(ctx, r, file, nil, 0)
		}
		if err != nil {
			return nil, err
		}
		s.record(r, i, len(files), res)
	}

	return s.finish(ctx, r, true)
}

type sampleBatch struct {
	index   int
	batch   *tabload.Batch
	elapsed time.Duration
}

// readSample parses files in order until one succeeds. Results for the files
// that failed before it are returned so they are not parsed twice.
func (s *LoadService) readSample(r *run, files []tabload.FileDescriptor) ([]tabload.FileResult, *sampleBatch) {
	var failed []tabload.FileResult
	for i, file := range files {
		start := time.Now()
		batch, err := r.reader.Read(file)
		if err == nil {
			s.logger.Verbose("Using %s as sample (%d columns)", file.RelativePath, len(batch.Columns))
			return failed, &sampleBatch{index: i, batch: batch, elapsed: time.Since(start)}
		}
		failed = append(failed, failedResult(file, err, time.Since(start)))
	}
	return failed, nil
}

func (s *LoadService) prepareTable(ctx context.Context, r *run, sample *tabload.Batch) error {
	if err := s.normalizeKeys(r, sample); err != nil {
		return err
	}

	if err := r.tables.EnsureTable(ctx, s.tableColumns(r, sample)); err != nil {
		return err
	}

	if r.cfg.Mode == tabload.ModeReplace {
		if err := s.clearTable(ctx, r, sample); err != nil {
			return err
		}
	}

	existing, err := r.tables.Columns(ctx)
	if err != nil {
		return err
	}
	r.columns = make(map[string]struct{}, len(existing))
	for _, c := range existing {
		r.columns[c] = struct{}{}
	}

	if len(r.keyColumns) == 0 {
		return nil
	}
	return s.prepareKeys(ctx, r, sample)
}

// tableColumns returns the columns of a new table. Key columns stay TEXT so
// that stored keys read back exactly as the file cells they came from.
func (s *LoadService) tableColumns(r *run, sample *tabload.Batch) []tabload.ColumnDef {
	defs := schema.Columns(sample, r.cfg.InferTypes)
	for i := range defs {
		if slices.Contains(r.keyColumns, defs[i].Name) {
			defs[i].Type = tabload.TypeText
		}
	}
	return defs
}

func (s *LoadService) clearTable(ctx context.Context, r *run, sample *tabload.Batch) error {
	err := r.tables.ClearTable(ctx)
	if errors.Is(err, tabload.ErrTableMissing) {
		s.logger.Verbose("Table vanished before truncate, creating it again")
		if err := r.tables.EnsureTable(ctx, s.tableColumns(r, sample)); err != nil {
			return err
		}
		err = r.tables.ClearTable(ctx)
	}
	if err != nil {
		return err
	}
	s.logger.Info("Cleared %s", r.summary.QualifiedTable())
	return nil
}

// normalizeKeys resolves the configured key columns against the sample.
func (s *LoadService) normalizeKeys(r *run, sample *tabload.Batch) error {
	if len(r.cfg.KeyColumns) == 0 {
		return nil
	}
	r.keyColumns = make([]string, len(r.cfg.KeyColumns))
	for i, k := range r.cfg.KeyColumns {
		r.keyColumns[i] = reader.NormalizeColumn(k)
		if sample.ColumnIndex(r.keyColumns[i]) < 0 {
			return fmt.Errorf("%w: key column %q not found in %s", tabload.ErrInvalidConfig, k, sample.Source.RelativePath)
		}
	}
	return nil
}

func (s *LoadService) prepareKeys(ctx context.Context, r *run, sample *tabload.Batch) error {
	r.keys = make(map[string]struct{})
	if r.cfg.Mode != tabload.ModeAppend {
		return nil
	}

	if err := s.reconcile(ctx, r, sample); err != nil {
		return err
	}
	keys, err := r.tables.ExistingKeys(ctx, r.keyColumns)
	if err != nil {
		return err
	}
	r.keys = keys
	s.logger.Verbose("Loaded %d existing keys from %s", len(keys), r.summary.QualifiedTable())
	return nil
}

// loadFile moves one file through read, reconcile and upload. A non-nil
// error aborts the run; file-level failures are returned as a result.
func (s *LoadService) loadFile(ctx context.Context, r *run, file tabload.FileDescriptor, batch *tabload.Batch, readTime time.Duration) (tabload.FileResult, error) {
	if dup, ok := s.duplicateOf(r, file); ok {
		return skippedDuplicate(file, dup), nil
	}

	start := time.Now().Add(-readTime)
	if batch == nil {
		var err error
		batch, err = r.reader.Read(file)
		if err != nil {
			return failedResult(file, err, time.Since(start)), nil
		}
	}

	if batch.RowCount() == 0 {
		s.logger.Info("%s has a header but no data rows, skipping", file.RelativePath)
		return tabload.FileResult{
			File:     file,
			Status:   tabload.StatusSkipped,
			Rows:     -1,
			Message:  "no data rows",
			Duration: time.Since(start),
		}, nil
	}

	if missing := s.missingKeyColumn(r, batch); missing != "" {
		err := fmt.Errorf("%w: %s: key column %q not found", tabload.ErrParse, file.RelativePath, missing)
		return failedResult(file, err, time.Since(start)), nil
	}

	if err := s.reconcile(ctx, r, batch); err != nil {
		return tabload.FileResult{}, err
	}

	pending, skippedRows := s.dropKnownKeys(r, batch)

	rows, err := r.uploader.Upload(ctx, batch)
	if err != nil {
		if errors.Is(err, tabload.ErrConnectionFailed) {
			return tabload.FileResult{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tabload.FileResult{}, fmt.Errorf("load interrupted during %s: %w", file.RelativePath, ctxErr)
		}
		return failedResult(file, err, time.Since(start)), nil
	}

	for k := range pending {
		r.keys[k] = struct{}{}
	}

	res := tabload.FileResult{
		File:     file,
		Status:   tabload.StatusLoaded,
		Rows:     rows,
		Duration: time.Since(start),
	}
	if skippedRows > 0 {
		res.Message = fmt.Sprintf("%d duplicate rows skipped", skippedRows)
	}
	return res, nil
}

// missingKeyColumn returns the first key column the batch lacks.
func (s *LoadService) missingKeyColumn(r *run, batch *tabload.Batch) string {
	for _, k := range r.keyColumns {
		if batch.ColumnIndex(k) < 0 {
			return k
		}
	}
	return ""
}

// duplicateOf reports the earlier file with identical content. Every file's
// checksum is remembered on first sight regardless of its outcome.
func (s *LoadService) duplicateOf(r *run, file tabload.FileDescriptor) (string, bool) {
	if !r.cfg.SkipDuplicateFiles || file.Checksum == "" {
		return "", false
	}
	if first, ok := r.checksums[file.Checksum]; ok {
		return first, true
	}
	r.checksums[file.Checksum] = file.RelativePath
	return "", false
}

// reconcile adds the batch columns the destination table lacks, as TEXT.
func (s *LoadService) reconcile(ctx context.Context, r *run, batch *tabload.Batch) error {
	var missing []string
	for _, c := range batch.Columns {
		if _, ok := r.columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := r.tables.AddColumns(ctx, tabload.TextColumns(missing)); err != nil {
		return err
	}
	for _, c := range missing {
		r.columns[c] = struct{}{}
	}
	s.logger.Info("Added columns to %s for %s: %s", r.summary.QualifiedTable(), batch.Source.RelativePath, strings.Join(missing, ", "))
	return nil
}

// dropKnownKeys removes rows whose key is already in the table or earlier in
// the run, including earlier in the same batch. The keys of the remaining
// rows are returned so they can be committed once the upload succeeds.
func (s *LoadService) dropKnownKeys(r *run, batch *tabload.Batch) (map[string]struct{}, int) {
	if len(r.keyColumns) == 0 {
		return nil, 0
	}

	idx := make([]int, len(r.keyColumns))
	for i, k := range r.keyColumns {
		idx[i] = batch.ColumnIndex(k)
	}

	pending := make(map[string]struct{})
	kept := make([][]string, 0, len(batch.Rows))
	skipped := 0
	for _, row := range batch.Rows {
		key := RowKey(row, idx)
		if _, ok := r.keys[key]; ok {
			skipped++
			continue
		}
		if _, ok := pending[key]; ok {
			skipped++
			continue
		}
		pending[key] = struct{}{}
		kept = append(kept, row)
	}
	batch.Rows = kept

	if skipped > 0 {
		s.logger.Verbose("%s: skipping %d rows with existing keys", batch.Source.RelativePath, skipped)
	}
	return pending, skipped
}

// RowKey joins the values at idx with KeySeparator. A negative index or one
// past the end of row contributes an empty value, the same as a NULL in the
// destination table.
func RowKey(row []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		if j >= 0 && j < len(row) {
			parts[i] = row[j]
		}
	}
	return strings.Join(parts, tabload.KeySeparator)
}

func (s *LoadService) record(r *run, i, total int, res tabload.FileResult) {
	r.summary.Record(res)
	if res.Status == tabload.StatusFailed {
		s.logger.Verbose("%s failed: %v", res.File.RelativePath, res.Err)
	}
	s.reporter.FileFinished(i+1, total, res)
}

func (s *LoadService) finish(ctx context.Context, r *run, tableReady bool) (*tabload.RunSummary, error) {
	if tableReady {
		count, err := r.tables.CountRows(ctx)
		if err != nil {
			s.logger.Error("Could not count rows in %s: %v", r.summary.QualifiedTable(), err)
		} else {
			r.summary.TableRows = count
		}
	}
	r.summary.CompletedAt = time.Now()
	s.reporter.Summary(r.summary)

	loaded, failed, _ := r.summary.Counts()
	s.logger.Verbose("Run %s finished: %d loaded, %d failed, %d rows", r.summary.RunID, loaded, failed, r.summary.TotalRows())
	if failed > 0 {
		return r.summary, fmt.Errorf("%w: %d of %d files", tabload.ErrPartialFailure, failed, len(r.summary.Results))
	}
	return r.summary, nil
}

func failedResult(file tabload.FileDescriptor, err error, elapsed time.Duration) tabload.FileResult {
	return tabload.FileResult{
		File:     file,
		Status:   tabload.StatusFailed,
		Rows:     -1,
		Message:  Preview(err.Error()),
		Err:      err,
		Duration: elapsed,
	}
}

func skippedDuplicate(file tabload.FileDescriptor, first string) tabload.FileResult {
	return tabload.FileResult{
		File:    file,
		Status:  tabload.StatusSkipped,
		Rows:    -1,
		Message: "same content as " + first,
	}
}

// Preview truncates a message to MaxErrorPreviewLength characters.
func Preview(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if utf8.RuneCountInString(msg) <= tabload.MaxErrorPreviewLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:tabload.MaxErrorPreviewLength-3]) + "..."
}
