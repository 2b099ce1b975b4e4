package reader

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/vvka-141/tabload/internal/files/filesystem"
	"github.com/vvka-141/tabload/pkg/tabload"
)

type sheetData struct {
	name string
	rows [][]interface{}
}

func buildWorkbook(t *testing.T, sheets ...sheetData) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sheet.name))
		} else {
			_, err := f.NewSheet(sheet.name)
			require.NoError(t, err)
		}
		for r, row := range sheet.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(sheet.name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func setup(t *testing.T, opts Options) (*Reader, *filesystem.MemoryFileSystem) {
	t.Helper()
	fs := filesystem.NewMemoryFileSystem("/exports")
	r, err := NewReaderWithFS(fs, opts)
	require.NoError(t, err)
	return r, fs
}

func descriptor(name string, format tabload.FileFormat) tabload.FileDescriptor {
	return tabload.FileDescriptor{Path: "/exports/" + name, RelativePath: name, Name: name, Format: format}
}

func TestRead_CSV(t *testing.T) {
	r, fs := setup(t, Options{})
	fs.AddFile("a.csv", "SKU,Qty On Hand,Warehouse\nA-1,3,east\nA-2,,west\n\nA-3,7,east\n")

	batch, err := r.Read(descriptor("a.csv", tabload.FormatCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"sku", "qty_on_hand", "warehouse"}, batch.Columns)
	assert.Equal(t, [][]string{
		{"A-1", "3", "east"},
		{"A-2", "", "west"},
		{"A-3", "7", "east"},
	}, batch.Rows)
	assert.Equal(t, "a.csv", batch.Source.Name)
}

func TestRead_CSVStripsBOMAndNUL(t *testing.T) {
	r, fs := setup(t, Options{})
	fs.AddFileBytes("bom.csv", []byte("\xEF\xBB\xBFsku,note\nA,x\x00y\n"), time.Now())

	batch, err := r.Read(descriptor("bom.csv", tabload.FormatCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "note"}, batch.Columns)
	assert.Equal(t, [][]string{{"A", "xy"}}, batch.Rows)
}

func TestRead_CSVWindows1252(t *testing.T) {
	r, fs := setup(t, Options{Encoding: "windows-1252"})
	encoded, err := charmap.Windows1252.NewEncoder().String("name,city\nJosé,Zürich\n")
	require.NoError(t, err)
	fs.AddFileBytes("latin.csv", []byte(encoded), time.Now())

	batch, err := r.Read(descriptor("latin.csv", tabload.FormatCSV))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"José", "Zürich"}}, batch.Rows)
}

func TestRead_CSVHeaderOnly(t *testing.T) {
	r, fs := setup(t, Options{})
	fs.AddFile("empty_rows.csv", "sku,qty\n")

	batch, err := r.Read(descriptor("empty_rows.csv", tabload.FormatCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, batch.RowCount())
	assert.Equal(t, []string{"sku", "qty"}, batch.Columns)
}

func TestRead_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"inconsistent field count", "sku,qty\nA,1\nB,2,extra\n"},
		{"unterminated quote", "sku,qty\n\"A,1\n"},
		{"empty file", ""},
		{"duplicate columns", "SKU,sku\nA,B\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fs := setup(t, Options{})
			fs.AddFile("c.csv", tt.content)

			_, err := r.Read(descriptor("c.csv", tabload.FormatCSV))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tabload.ErrParse))
			assert.Contains(t, err.Error(), "c.csv")
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	r, _ := setup(t, Options{})

	_, err := r.Read(descriptor("gone.csv", tabload.FormatCSV))
	assert.True(t, errors.Is(err, tabload.ErrParse))
}

func TestRead_XLSXFirstSheet(t *testing.T) {
	r, fs := setup(t, Options{})
	fs.AddFileBytes("b.xlsx", buildWorkbook(t,
		sheetData{name: "Inventory", rows: [][]interface{}{
			{"SKU", "Qty", "Note"},
			{"B-1", 5, "ok"},
			{},
			{"B-2", 8},
		}},
		sheetData{name: "Other", rows: [][]interface{}{{"ignored"}}},
	), time.Now())

	batch, err := r.Read(descriptor("b.xlsx", tabload.FormatXLSX))
	require.NoError(t, err)

	assert.Equal(t, []string{"sku", "qty", "note"}, batch.Columns)
	assert.Equal(t, [][]string{
		{"B-1", "5", "ok"},
		{"B-2", "8", ""},
	}, batch.Rows)
}

func TestRead_XLSXNamedSheet(t *testing.T) {
	r, fs := setup(t, Options{Sheet: "Shipments"})
	fs.AddFileBytes("s.xlsx", buildWorkbook(t,
		sheetData{name: "Summary", rows: [][]interface{}{{"total"}, {1}}},
		sheetData{name: "Shipments", rows: [][]interface{}{{"Order Id", "Sku"}, {"o-1", "S1"}}},
	), time.Now())

	batch, err := r.Read(descriptor("s.xlsx", tabload.FormatXLSX))
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "sku"}, batch.Columns)
	assert.Equal(t, [][]string{{"o-1", "S1"}}, batch.Rows)
}

func TestRead_XLSXMissingSheet(t *testing.T) {
	r, fs := setup(t, Options{Sheet: "Nope"})
	fs.AddFileBytes("s.xlsx", buildWorkbook(t,
		sheetData{name: "Data", rows: [][]interface{}{{"a"}}},
	), time.Now())

	_, err := r.Read(descriptor("s.xlsx", tabload.FormatXLSX))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tabload.ErrParse))
	assert.Contains(t, err.Error(), "Nope")
}

func TestRead_XLSXCorrupt(t *testing.T) {
	r, fs := setup(t, Options{})
	fs.AddFile("broken.xlsx", "this is not a zip archive")

	_, err := r.Read(descriptor("broken.xlsx", tabload.FormatXLSX))
	assert.True(t, errors.Is(err, tabload.ErrParse))
}

func TestRead_XLSXCellBeyondHeader(t *testing.T) {
	r, fs := setup(t, Options{})
	fs.AddFileBytes("wide.xlsx", buildWorkbook(t,
		sheetData{name: "Data", rows: [][]interface{}{{"a", "b"}, {1, 2, 3}}},
	), time.Now())

	_, err := r.Read(descriptor("wide.xlsx", tabload.FormatXLSX))
	assert.True(t, errors.Is(err, tabload.ErrParse))
}

func TestNewReader_UnknownEncoding(t *testing.T) {
	_, err := NewReaderWithFS(filesystem.NewMemoryFileSystem("/"), Options{Encoding: "klingon-8"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tabload.ErrInvalidConfig))
}

func TestLookupEncoding_Labels(t *testing.T) {
	for _, label := range []string{"utf-8", "UTF8", "latin1", "windows-1252", "shift_jis"} {
		enc, err := LookupEncoding(label)
		require.NoError(t, err, label)
		assert.NotNil(t, enc)
	}
}

func TestLookupEncoding_AutoDetects(t *testing.T) {
	for _, label := range []string{"", " auto ", "AUTO"} {
		enc, err := LookupEncoding(label)
		require.NoError(t, err, label)
		assert.Nil(t, enc, label)
	}
}

func TestDetectEncoding(t *testing.T) {
	latin, err := charmap.Windows1252.NewEncoder().String("name\nJosé\n")
	require.NoError(t, err)

	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"plain ascii", []byte("sku,qty\nA,1\n"), "utf-8"},
		{"utf-8", []byte("name\nJosé\n"), "utf-8"},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, "sku\n"...), "utf-8"},
		{"utf-16le with bom", []byte{0xFF, 0xFE, 's', 0, 'k', 0, 'u', 0}, "utf-16le"},
		{"latin-1 bytes", []byte(latin), "windows-1252"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, name := DetectEncoding(tt.content)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestRead_CSVDetectsWindows1252(t *testing.T) {
	r, fs := setup(t, Options{})
	encoded, err := charmap.Windows1252.NewEncoder().String("name,city\nJosé,Zürich\n")
	require.NoError(t, err)
	fs.AddFileBytes("latin.csv", []byte(encoded), time.Now())

	batch, err := r.Read(descriptor("latin.csv", tabload.FormatCSV))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"José", "Zürich"}}, batch.Rows)
}
