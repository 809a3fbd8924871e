// Package export writes tabular documents as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet is a single worksheet: a header row, data rows and an optional summary row
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
	Summary []any
	// Widths sets column widths by position; missing entries keep the default
	Widths []float64
}

// XLSXWriter renders sheets into an .xlsx workbook
type XLSXWriter struct{}

// NewXLSXWriter creates a writer
func NewXLSXWriter() *XLSXWriter { return &XLSXWriter{} }

// ContentType is the MIME type of the produced workbook
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write renders the sheets in order and returns the workbook bytes
func (w *XLSXWriter) Write(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("export: at least one sheet is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}
	summaryStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("export: summary style: %w", err)
	}

	for i, s := range sheets {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("export: new sheet: %w", err)
		}
		if err := writeSheet(f, name, s, headerStyle, summaryStyle); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, s Sheet, headerStyle, summaryStyle int) error {
	if len(s.Headers) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(s.Headers), 1)
		if err := f.SetSheetRow(name, first, &s.Headers); err != nil {
			return fmt.Errorf("export: header row: %w", err)
		}
		if err := f.SetCellStyle(name, first, last, headerStyle); err != nil {
			return fmt.Errorf("export: header style: %w", err)
		}
	}

	row := 2
	for _, r := range s.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := cellValues(r)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("export: row %d: %w", row, err)
		}
		row++
	}

	if len(s.Summary) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(s.Summary), row)
		values := cellValues(s.Summary)
		if err := f.SetSheetRow(name, first, &values); err != nil {
			return fmt.Errorf("export: summary row: %w", err)
		}
		if err := f.SetCellStyle(name, first, last, summaryStyle); err != nil {
			return fmt.Errorf("export: summary style: %w", err)
		}
	}

	for i, width := range s.Widths {
		if width <= 0 {
			continue
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}
	return nil
}

// cellValues converts decimals to float64 so spreadsheets treat them as numbers
func cellValues(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		switch val := v.(type) {
		case decimal.Decimal:
			out[i] = val.InexactFloat64()
		case *decimal.Decimal:
			if val != nil {
				out[i] = val.InexactFloat64()
			}
		default:
			out[i] = v
		}
	}
	return out
}
