package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheetName = "Report"
	maxColumnWidth   = 60.0
)

// XLSXExporter renders datasets into a single-sheet workbook with a frozen,
// filterable header row.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter constructs an XLSX exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = defaultSheetName
	}
	return &XLSXExporter{sheet: sheet}
}

// Render produces the workbook bytes.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", e.sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	widths := make([]float64, len(data.Headers))
	for i, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(e.sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header %s: %w", cell, err)
		}
		widths[i] = cellWidth(header)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err := file.SetCellStyle(e.sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for r, row := range data.Rows {
		values := data.record(row)
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		line := make([]interface{}, len(values))
		for i, v := range values {
			line[i] = v
			if w := cellWidth(v); w > widths[i] {
				widths[i] = w
			}
		}
		if err := file.SetSheetRow(e.sheet, cell, &line); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := file.SetColWidth(e.sheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set width %s: %w", col, err)
		}
	}

	if err := file.SetPanes(e.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	lastCell, _ := excelize.CoordinatesToCellName(len(data.Headers), len(data.Rows)+1)
	if err := file.AutoFilter(e.sheet, "A1:"+lastCell, nil); err != nil {
		return nil, fmt.Errorf("auto filter: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellWidth(value string) float64 {
	width := float64(utf8.RuneCountInString(value)) + 2
	if width > maxColumnWidth {
		return maxColumnWidth
	}
	return width
}
