package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXWriter_Write(t *testing.T) {
	w := NewXLSXWriter()
	data, err := w.Write(
		Sheet{
			Name:    "Lots",
			Headers: []string{"Material", "Lot", "Quantity"},
			Rows: [][]any{
				{"SUGAR", int64(7), decimal.RequireFromString("3.5")},
				{"BOX-001", int64(9), decimal.NewFromInt(4)},
			},
			Summary: []any{"Total", "", decimal.RequireFromString("7.5")},
			Widths:  []float64{20, 0, 12},
		},
		Sheet{Name: "Excess", Headers: []string{"Material"}},
	)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Lots", "Excess"}, f.GetSheetList())

	rows, err := f.GetRows("Lots")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Material", "Lot", "Quantity"}, rows[0])
	assert.Equal(t, []string{"SUGAR", "7", "3.5"}, rows[1])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "7.5", rows[3][2])
}

func TestXLSXWriter_NoSheets(t *testing.T) {
	_, err := NewXLSXWriter().Write()
	assert.Error(t, err)
}
