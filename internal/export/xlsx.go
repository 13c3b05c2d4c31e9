package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/racmlabs/racm-int/internal/racm"
	"github.com/racmlabs/racm-int/internal/table"
)

// WriteXLSX writes the filtered rows of the engine's active tab to a
// spreadsheet with one sheet, named after the tab, with a bold header row.
func WriteXLSX(path string, eng *table.Engine) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(eng.Tab())
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, label := range racm.Fields {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, label); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(racm.Fields), 1)
	if err := f.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for r, row := range eng.FilteredRows() {
		for c := range racm.Fields {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, eng.Value(row.Index, c)); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}

func sheetName(tab table.Tab) string {
	s := string(tab)
	if s == "" {
		return "Detailed"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
