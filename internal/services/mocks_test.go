package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vvka-141/tabload/internal/checksum"
	"github.com/vvka-141/tabload/internal/files/filesystem"
	"github.com/vvka-141/tabload/internal/files/reader"
	"github.com/vvka-141/tabload/internal/files/scanner"
	"github.com/vvka-141/tabload/internal/logging"
	"github.com/vvka-141/tabload/internal/testing/fakedb"
	"github.com/vvka-141/tabload/pkg/tabload"
)

// mockStore stands in for both the table manager and the uploader so that
// row counts follow uploads.
type mockStore struct {
	calls     []string
	ensured   []tabload.ColumnDef
	columns   []string
	tableRows int64
	uploaded  map[string][][]string

	ensureErr  error
	clearErrs  []error
	addErr     error
	keysErr    error
	countErr   error
	uploadErrs map[string]error
	existing   map[string]struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		uploaded:   make(map[string][][]string),
		uploadErrs: make(map[string]error),
	}
}

func (m *mockStore) EnsureTable(ctx context.Context, columns []tabload.ColumnDef) error {
	m.calls = append(m.calls, "ensure")
	m.ensured = columns
	if m.ensureErr != nil {
		return m.ensureErr
	}
	if m.columns == nil {
		for _, c := range columns {
			m.columns = append(m.columns, c.Name)
		}
	}
	return nil
}

func (m *mockStore) ClearTable(ctx context.Context) error {
	m.calls = append(m.calls, "clear")
	if len(m.clearErrs) > 0 {
		err := m.clearErrs[0]
		m.clearErrs = m.clearErrs[1:]
		if err != nil {
			return err
		}
	}
	m.tableRows = 0
	return nil
}

func (m *mockStore) Columns(ctx context.Context) ([]string, error) {
	m.calls = append(m.calls, "columns")
	return append([]string(nil), m.columns...), nil
}

func (m *mockStore) AddColumns(ctx context.Context, columns []tabload.ColumnDef) error {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	m.calls = append(m.calls, "add:"+strings.Join(names, ","))
	if m.addErr != nil {
		return m.addErr
	}
	m.columns = append(m.columns, names...)
	return nil
}

func (m *mockStore) ExistingKeys(ctx context.Context, keyColumns []string) (map[string]struct{}, error) {
	m.calls = append(m.calls, "keys:"+strings.Join(keyColumns, ","))
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	keys := make(map[string]struct{}, len(m.existing))
	for k := range m.existing {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (m *mockStore) CountRows(ctx context.Context) (int64, error) {
	m.calls = append(m.calls, "count")
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.tableRows, nil
}

func (m *mockStore) Upload(ctx context.Context, batch *tabload.Batch) (int64, error) {
	m.calls = append(m.calls, "upload:"+batch.Source.RelativePath)
	if err := m.uploadErrs[batch.Source.RelativePath]; err != nil {
		return 0, err
	}
	m.uploaded[batch.Source.RelativePath] = batch.Rows
	m.tableRows += int64(len(batch.Rows))
	return int64(len(batch.Rows)), nil
}

func (m *mockStore) countCalls(prefix string) int {
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type mockReporter struct {
	noFiles    []string
	discovered int
	indices    []int
	finished   []tabload.FileResult
	summaries  []*tabload.RunSummary
}

func (r *mockReporter) NoFiles(root string) {
	r.noFiles = append(r.noFiles, root)
}

func (r *mockReporter) Discovered(total int) {
	r.discovered = total
}

func (r *mockReporter) FileFinished(index, total int, result tabload.FileResult) {
	r.indices = append(r.indices, index)
	r.finished = append(r.finished, result)
}

func (r *mockReporter) Summary(summary *tabload.RunSummary) {
	r.summaries = append(r.summaries, summary)
}

type harness struct {
	svc      *LoadService
	fs       *filesystem.MemoryFileSystem
	store    *mockStore
	reporter *mockReporter
	connects int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fs:       filesystem.NewMemoryFileSystem("/exports"),
		store:    newMockStore(),
		reporter: &mockReporter{},
	}
	h.svc = NewLoadService(
		func(*tabload.ConnectionConfig) (tabload.Connector, error) {
			return nil, errors.New("connector factory must not be used in unit tests")
		},
		scanner.NewScannerWithFS(checksum.New(), h.fs),
		h.reporter,
		logging.NewNullLogger(),
	)
	h.svc.connect = func(ctx context.Context, cfg *tabload.ConnectionConfig) (tabload.DBConnection, func(), error) {
		h.connects++
		return &fakedb.DB{}, func() {}, nil
	}
	h.svc.newReader = func(cfg tabload.LoadConfig) (tabload.BatchReader, error) {
		return reader.NewReaderWithFS(h.fs, reader.Options{Sheet: cfg.Sheet, Encoding: cfg.Encoding})
	}
	h.svc.newTables = func(conn tabload.DBConnection, schema, table string) tabload.TableManager {
		return h.store
	}
	h.svc.newUploader = func(conn tabload.DBConnection, schema, table string) tabload.Uploader {
		return h.store
	}
	return h
}

func (h *harness) config() tabload.LoadConfig {
	return tabload.LoadConfig{
		SourcePath: "/exports",
		Connection: &tabload.ConnectionConfig{Host: "localhost", Port: 5432, Database: "inventory"},
		Table:      "stock",
	}
}

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
