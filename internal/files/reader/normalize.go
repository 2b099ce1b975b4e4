package reader

import (
	"fmt"
	"strings"
)

// NormalizeColumn trims name, collapses each run of internal whitespace into a
// single underscore and lower-cases the result. It is idempotent.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// NormalizeColumns normalizes a header row. Blank names become unnamed_<n>
// where n is the 1-based position. Duplicate names after normalization are an error.
func NormalizeColumns(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))

	for i, raw := range header {
		name := NormalizeColumn(cleanCell(raw))
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i+1)
		}
		if first, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate column %q at positions %d and %d", name, first+1, i+1)
		}
		seen[name] = i
		columns[i] = name
	}
	return columns, nil
}

// cleanCell drops invalid UTF-8 sequences, NUL bytes and a leading byte order mark.
func cleanCell(value string) string {
	value = strings.ToValidUTF8(value, "")
	value = strings.ReplaceAll(value, "\x00", "")
	return strings.TrimPrefix(value, "\uFEFF")
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
