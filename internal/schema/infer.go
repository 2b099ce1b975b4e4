// Package schema chooses destination column types for a batch.
//
// Inference is opt-in. Without it every column is TEXT, which accepts any
// cell a spreadsheet export can contain.
package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/tabload/pkg/tabload"
)

var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// candidate order is the inference precedence
var candidates = []struct {
	columnType tabload.ColumnType
	accepts    func(string) bool
}{
	{tabload.TypeInteger, isInteger},
	{tabload.TypeFloat, isFloat},
	{tabload.TypeBoolean, isBoolean},
	{tabload.TypeTimestamp, isTimestamp},
}

// InferColumn returns the narrowest type that accepts every non-empty value.
// A column without non-empty values is TEXT.
func InferColumn(values []string) tabload.ColumnType {
	var present []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return tabload.TypeText
	}

	for _, c := range candidates {
		if all(present, c.accepts) {
			return c.columnType
		}
	}
	return tabload.TypeText
}

// Columns returns column definitions for batch. With infer false every column is TEXT.
func Columns(batch *tabload.Batch, infer bool) []tabload.ColumnDef {
	if !infer {
		return tabload.TextColumns(batch.Columns)
	}

	defs := make([]tabload.ColumnDef, len(batch.Columns))
	values := make([]string, len(batch.Rows))
	for i, name := range batch.Columns {
		for r, row := range batch.Rows {
			values[r] = row[i]
		}
		defs[i] = tabload.ColumnDef{Name: name, Type: InferColumn(values)}
	}
	return defs
}

func all(values []string, accepts func(string) bool) bool {
	for _, v := range values {
		if !accepts(v) {
			return false
		}
	}
	return true
}

func isInteger(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isBoolean(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false":
		return true
	}
	return false
}

func isTimestamp(v string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
