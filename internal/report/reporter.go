package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vvka-141/tabload/internal/tui"
	"github.com/vvka-141/tabload/pkg/tabload"
)

const progressWidth = 24

// Reporter implements tabload.Reporter.
type Reporter struct {
	mu     sync.Mutex
	status io.Writer
	out    io.Writer
	rich   bool
	bar    progress.Model
}

// New creates a reporter writing status lines to status and the summary to out.
// Colors and the progress bar are used only when status is a terminal.
func New(status, out io.Writer) *Reporter {
	return NewWithMode(status, out, tui.DetectMode(status))
}

// NewWithMode creates a reporter with an explicit rendering mode.
func NewWithMode(status, out io.Writer, mode tui.Mode) *Reporter {
	return &Reporter{
		status: status,
		out:    out,
		rich:   mode == tui.ModeRich,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(progressWidth),
			progress.WithoutPercentage(),
		),
	}
}

func (r *Reporter) NoFiles(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "No .csv or .xlsx files found in %s\n", root)
}

func (r *Reporter) Discovered(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	noun := "files"
	if total == 1 {
		noun = "file"
	}
	fmt.Fprintf(r.status, "Found %d %s to load\n", total, noun)
}

func (r *Reporter) FileFinished(index, total int, result tabload.FileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := StatusLine(index, total, result)
	if r.rich {
		symbol, style := statusDecoration(result.Status)
		line = fmt.Sprintf("%s %s %s", r.bar.ViewAs(float64(index)/float64(total)), style.Render(symbol), line)
	}
	fmt.Fprintln(r.status, line)
}

func (r *Reporter) Summary(summary *tabload.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, RenderTable(summary, r.rich))
	fmt.Fprintln(r.out, Totals(summary))
}

// StatusLine is the plain per-file progress line.
func StatusLine(index, total int, result tabload.FileResult) string {
	prefix := fmt.Sprintf("[%d/%d] %s", index, total, result.File.RelativePath)
	elapsed := result.Duration.Round(time.Millisecond)

	switch result.Status {
	case tabload.StatusLoaded:
		line := fmt.Sprintf("%s: loaded %s rows in %v", prefix, result.RowsText(), elapsed)
		if result.Message != "" {
			line += " (" + result.Message + ")"
		}
		return line
	case tabload.StatusSkipped:
		return fmt.Sprintf("%s: skipped: %s", prefix, result.Message)
	default:
		return fmt.Sprintf("%s: failed: %s", prefix, result.Message)
	}
}

// StatusText is the content of the Status column.
func StatusText(result tabload.FileResult) string {
	switch result.Status {
	case tabload.StatusLoaded:
		if result.Message != "" {
			return "Success (" + result.Message + ")"
		}
		return "Success"
	case tabload.StatusSkipped:
		return "Skipped: " + result.Message
	default:
		return "Failed: " + result.Message
	}
}

// RenderTable renders the File, Rows and Status columns, one row per result
// in processing order.
func RenderTable(summary *tabload.RunSummary, rich bool) string {
	rows := make([][]string, len(summary.Results))
	for i, res := range summary.Results {
		rows[i] = []string{res.File.RelativePath, res.RowsText(), StatusText(res)}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("File", "Rows", "Status").
		Rows(rows...)

	if rich {
		t = t.BorderStyle(tui.BorderStyle).StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tui.HeaderStyle
			}
			style := tui.CellStyle
			if col == 2 && row >= 0 && row < len(summary.Results) {
				_, statusStyle := statusDecoration(summary.Results[row].Status)
				style = style.Foreground(statusStyle.GetForeground())
			}
			if col == 1 {
				style = style.Align(lipgloss.Right)
			}
			return style
		})
	} else {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}

	title := "Load summary for " + summary.QualifiedTable()
	if rich {
		title = tui.TitleStyle.Render(title)
	}
	return title + "\n" + t.String()
}

// RenderFiles renders discovered files with their format, size, modification
// time and a shortened checksum.
func RenderFiles(files []tabload.FileDescriptor, rich bool) string {
	rows := make([][]string, len(files))
	for i, f := range files {
		sum := f.Checksum
		if len(sum) > checksumPreview {
			sum = sum[:checksumPreview]
		}
		rows[i] = []string{
			f.RelativePath,
			f.Format.String(),
			humanSize(f.SizeBytes),
			f.ModifiedAt.Format("2006-01-02 15:04"),
			sum,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("File", "Format", "Size", "Modified", "Checksum").
		Rows(rows...)
	if rich {
		t = t.BorderStyle(tui.BorderStyle).StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tui.HeaderStyle
			case col == 4:
				return tui.CellStyle.Foreground(tui.ColorMuted)
			default:
				return tui.CellStyle
			}
		})
	} else {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	return t.String()
}

const checksumPreview = 12

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Totals renders the counts below the table.
func Totals(summary *tabload.RunSummary) string {
	loaded, failed, skipped := summary.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "Files: %d loaded, %d failed", loaded, failed)
	if skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", skipped)
	}
	fmt.Fprintf(&b, "\nRows inserted: %d", summary.TotalRows())
	if summary.TableRows >= 0 {
		fmt.Fprintf(&b, "\nRows in %s: %d", summary.QualifiedTable(), summary.TableRows)
	}
	if !summary.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "\nElapsed: %v", summary.CompletedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "\nRun ID: %s", summary.RunID)
	return b.String()
}

func statusDecoration(status tabload.FileStatus) (string, lipgloss.Style) {
	switch status {
	case tabload.StatusLoaded:
		return tui.SymbolCheck, tui.SuccessStyle
	case tabload.StatusSkipped:
		return tui.SymbolSkip, tui.WarningStyle
	default:
		return tui.SymbolCross, tui.ErrorStyle
	}
}

var _ tabload.Reporter = (*Reporter)(nil)
