package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/tabload/pkg/tabload"
)

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   tabload.ColumnType
	}{
		{"integers", []string{"1", "-42", "9000000000"}, tabload.TypeInteger},
		{"integers with blanks", []string{"1", "", "  ", "3"}, tabload.TypeInteger},
		{"floats", []string{"1.5", "2", "-0.25"}, tabload.TypeFloat},
		{"exponent", []string{"1e3"}, tabload.TypeFloat},
		{"infinity is text", []string{"Inf"}, tabload.TypeText},
		{"booleans", []string{"true", "FALSE", "True"}, tabload.TypeBoolean},
		{"yes/no is text", []string{"yes", "no"}, tabload.TypeText},
		{"dates", []string{"2024-01-31", "2024-02-01"}, tabload.TypeTimestamp},
		{"datetimes", []string{"2024-01-31 08:15:00", "2024-02-01T10:00:00Z"}, tabload.TypeTimestamp},
		{"mixed", []string{"1", "abc"}, tabload.TypeText},
		{"all empty", []string{"", ""}, tabload.TypeText},
		{"no values", nil, tabload.TypeText},
		{"sku-like", []string{"A-1", "A-2"}, tabload.TypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumn(tt.values))
		})
	}
}

func TestColumns(t *testing.T) {
	batch := &tabload.Batch{
		Columns: []string{"sku", "qty", "shipped_at"},
		Rows: [][]string{
			{"A-1", "3", "2024-05-01"},
			{"A-2", "", "2024-05-02 10:00:00"},
		},
	}

	t.Run("text only", func(t *testing.T) {
		defs := Columns(batch, false)
		for _, d := range defs {
			assert.Equal(t, tabload.TypeText, d.Type, d.Name)
		}
	})

	t.Run("inferred", func(t *testing.T) {
		assert.Equal(t, []tabload.ColumnDef{
			{Name: "sku", Type: tabload.TypeText},
			{Name: "qty", Type: tabload.TypeInteger},
			{Name: "shipped_at", Type: tabload.TypeTimestamp},
		}, Columns(batch, true))
	})
}
