// Package reader parses discovered files into normalized batches.
//
// CSV files are read with encoding/csv after decoding the configured text
// encoding. XLSX workbooks are read with excelize, using the configured sheet
// or the first sheet of the workbook. In both formats the first non-blank row
// is the header; header names pass through NormalizeColumn and must be unique.
//
// Every failure returned by Read wraps tabload.ErrParse so that the caller can
// record it against the file and move on.
package reader
