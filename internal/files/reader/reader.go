package reader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"

	"github.com/vvka-141/tabload/internal/files/filesystem"
	"github.com/vvka-141/tabload/pkg/tabload"
)

// Options configures how files are parsed.
type Options struct {
	// Sheet is the worksheet read from XLSX files. Empty selects the first sheet.
	Sheet string

	// Encoding is the WHATWG label of the CSV text encoding. Empty or "auto"
	// detects it per file.
	Encoding string
}

// Reader parses CSV and XLSX files into batches.
// Reader holds no per-file state and is safe for concurrent use.
type Reader struct {
	fsProvider filesystem.FileSystemProvider
	sheet      string
	encoding   encoding.Encoding
}

// NewReader creates a reader over the OS filesystem.
func NewReader(opts Options) (*Reader, error) {
	return NewReaderWithFS(filesystem.NewOSFileSystem(), opts)
}

// NewReaderWithFS creates a reader with a custom filesystem provider.
// Panics if fsProvider is nil. Returns an error wrapping tabload.ErrInvalidConfig
// for an unknown encoding label.
func NewReaderWithFS(fsProvider filesystem.FileSystemProvider, opts Options) (*Reader, error) {
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return &Reader{
		fsProvider: fsProvider,
		sheet:      opts.Sheet,
		encoding:   enc,
	}, nil
}

// Read parses file into a batch with normalized columns.
func (r *Reader) Read(file tabload.FileDescriptor) (*tabload.Batch, error) {
	content, err := r.fsProvider.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tabload.ErrParse, file.RelativePath, err)
	}

	var rows [][]string
	switch file.Format {
	case tabload.FormatCSV:
		rows, err = r.readCSV(content)
	case tabload.FormatXLSX:
		rows, err = r.readXLSX(content)
	default:
		err = fmt.Errorf("unsupported file format %q", file.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tabload.ErrParse, file.RelativePath, err)
	}

	batch, err := buildBatch(file, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tabload.ErrParse, file.RelativePath, err)
	}
	return batch, nil
}

func (r *Reader) readCSV(content []byte) ([][]string, error) {
	csvReader := csv.NewReader(decodingReader(content, r.encoding))
	csvReader.FieldsPerRecord = 0

	var rows [][]string
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func (r *Reader) readXLSX(content []byte) ([][]string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer func() {
		_ = workbook.Close()
	}()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in XLSX file")
	}

	sheet := sheets[0]
	if r.sheet != "" {
		if idx, err := workbook.GetSheetIndex(r.sheet); err != nil || idx < 0 {
			return nil, fmt.Errorf("sheet %q not found (available: %v)", r.sheet, sheets)
		}
		sheet = r.sheet
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// buildBatch takes the first non-blank row as the header and the remaining
// non-blank rows as data. Short rows are padded; a non-empty cell beyond the
// header width is an error.
func buildBatch(file tabload.FileDescriptor, rows [][]string) (*tabload.Batch, error) {
	headerAt := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, errors.New("file has no header row")
	}

	columns, err := NormalizeColumns(rows[headerAt])
	if err != nil {
		return nil, err
	}

	data := make([][]string, 0, len(rows)-headerAt-1)
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		for j := len(columns); j < len(row); j++ {
			if row[j] != "" {
				return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(row), len(columns))
			}
		}

		cells := make([]string, len(columns))
		for j := 0; j < len(columns) && j < len(row); j++ {
			cells[j] = cleanCell(row[j])
		}
		data = append(data, cells)
	}

	return &tabload.Batch{
		Source:  file,
		Columns: columns,
		Rows:    data,
	}, nil
}

var _ tabload.BatchReader = (*Reader)(nil)
