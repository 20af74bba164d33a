// Package spreadsheet writes the export table as an .xlsx workbook.
package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/eshaffer321/shopify-compta/internal/domain/table"
)

// SheetName is the single sheet of the workbook.
const SheetName = "compta"

const columnWidth = 16

// FileName returns the export file name for a date window.
func FileName(start, end string) string {
	return fmt.Sprintf("compta_%s_%s.xlsx", start, end)
}

// WriteXLSX writes t to path: a bold frozen header row, then one row per
// order. Numbers stay numbers and nil cells are left empty.
func WriteXLSX(path string, t *table.Table) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if len(t.Columns) > 0 {
		if err := sw.SetColWidth(1, len(t.Columns), columnWidth); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}

		header := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			header[i] = excelize.Cell{StyleID: bold, Value: col}
		}
		if err := sw.SetRow("A1", header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
