package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/tabload/internal/tui"
	"github.com/vvka-141/tabload/pkg/tabload"
)

func result(path string, status tabload.FileStatus, rows int64, msg string) tabload.FileResult {
	return tabload.FileResult{
		File:     tabload.FileDescriptor{RelativePath: path, Name: path},
		Status:   status,
		Rows:     rows,
		Message:  msg,
		Duration: 120 * time.Millisecond,
	}
}

func sampleSummary() *tabload.RunSummary {
	s := tabload.NewRunSummary("public", "stock")
	s.Record(result("a.csv", tabload.StatusLoaded, 3, ""))
	s.Record(result("sub/b.xlsx", tabload.StatusLoaded, 2, ""))
	failed := result("c.csv", tabload.StatusFailed, -1, "parse error: c.csv: record on line 3: wrong number of fields")
	failed.Err = errors.New("boom")
	s.Record(failed)
	s.TableRows = 5
	s.CompletedAt = s.StartedAt.Add(2 * time.Second)
	return s
}

func TestReporter_Summary_Plain(t *testing.T) {
	var status, out bytes.Buffer
	r := NewWithMode(&status, &out, tui.ModePlain)

	r.Summary(sampleSummary())

	text := out.String()
	assert.Contains(t, text, "Load summary for public.stock")
	assert.Contains(t, text, "File")
	assert.Contains(t, text, "Rows")
	assert.Contains(t, text, "Status")
	assert.Contains(t, text, "sub/b.xlsx")
	assert.Contains(t, text, "Success")
	assert.Contains(t, text, "Failed: parse error")
	assert.Contains(t, text, "N/A")
	assert.Contains(t, text, "Files: 2 loaded, 1 failed")
	assert.NotContains(t, text, "skipped")
	assert.Contains(t, text, "Rows inserted: 5")
	assert.Contains(t, text, "Rows in public.stock: 5")
	assert.Contains(t, text, "Elapsed: 2s")
	assert.NotContains(t, text, "\x1b[", "plain mode must not emit ANSI sequences")
	assert.Empty(t, status.String())
}

func TestReporter_Summary_RowsInProcessingOrder(t *testing.T) {
	var out bytes.Buffer
	r := NewWithMode(&bytes.Buffer{}, &out, tui.ModePlain)

	r.Summary(sampleSummary())

	text := out.String()
	a := strings.Index(text, "a.csv")
	b := strings.Index(text, "sub/b.xlsx")
	c := strings.Index(text, "c.csv")
	require.True(t, a >= 0 && b >= 0 && c >= 0)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestReporter_Summary_UnknownTableCount(t *testing.T) {
	s := sampleSummary()
	s.TableRows = -1

	text := Totals(s)
	assert.NotContains(t, text, "Rows in "+s.QualifiedTable())
	assert.Contains(t, text, "Rows inserted: ")
	assert.Contains(t, text, "Run ID: "+s.RunID.String())
}

func TestReporter_FileFinished_Plain(t *testing.T) {
	var status bytes.Buffer
	r := NewWithMode(&status, &bytes.Buffer{}, tui.ModePlain)

	r.Discovered(3)
	r.FileFinished(1, 3, result("a.csv", tabload.StatusLoaded, 3, ""))
	r.FileFinished(2, 3, result("dup.csv", tabload.StatusSkipped, -1, "duplicate of a.csv"))
	r.FileFinished(3, 3, result("c.csv", tabload.StatusFailed, -1, "transfer error"))

	lines := strings.Split(strings.TrimSpace(status.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Found 3 files to load", lines[0])
	assert.Equal(t, "[1/3] a.csv: loaded 3 rows in 120ms", lines[1])
	assert.Equal(t, "[2/3] dup.csv: skipped: duplicate of a.csv", lines[2])
	assert.Equal(t, "[3/3] c.csv: failed: transfer error", lines[3])
}

func TestReporter_FileFinished_RichIncludesSymbol(t *testing.T) {
	var status bytes.Buffer
	r := NewWithMode(&status, &bytes.Buffer{}, tui.ModeRich)

	r.FileFinished(1, 2, result("a.csv", tabload.StatusLoaded, 3, ""))

	assert.Contains(t, status.String(), tui.SymbolCheck)
	assert.Contains(t, status.String(), "[1/2] a.csv: loaded 3 rows")
}

func TestReporter_NoFiles(t *testing.T) {
	var out bytes.Buffer
	r := NewWithMode(&bytes.Buffer{}, &out, tui.ModePlain)

	r.NoFiles("/data/in")

	assert.Equal(t, "No .csv or .xlsx files found in /data/in\n", out.String())
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Success", StatusText(result("a", tabload.StatusLoaded, 1, "")))
	assert.Equal(t, "Success (2 duplicate rows skipped)", StatusText(result("a", tabload.StatusLoaded, 1, "2 duplicate rows skipped")))
	assert.Equal(t, "Skipped: same content", StatusText(result("a", tabload.StatusSkipped, -1, "same content")))
	assert.Equal(t, "Failed: bad", StatusText(result("a", tabload.StatusFailed, -1, "bad")))
}

func TestRenderFiles(t *testing.T) {
	files := []tabload.FileDescriptor{
		{
			RelativePath: "2024/jan/a.csv",
			Format:       tabload.FormatCSV,
			SizeBytes:    2048,
			ModifiedAt:   time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC),
			Checksum:     "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{RelativePath: "b.xlsx", Format: tabload.FormatXLSX, SizeBytes: 12},
	}

	text := RenderFiles(files, false)
	assert.Contains(t, text, "2024/jan/a.csv")
	assert.Contains(t, text, "csv")
	assert.Contains(t, text, "xlsx")
	assert.Contains(t, text, "2.0 KiB")
	assert.Contains(t, text, "12 B")
	assert.Contains(t, text, "2024-01-31 09:30")
	assert.Contains(t, text, "ba7816bf8f01")
	assert.NotContains(t, text, "ba7816bf8f01c")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "0 B", humanSize(0))
	assert.Equal(t, "1023 B", humanSize(1023))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "1.5 MiB", humanSize(3*1024*1024/2))
}
