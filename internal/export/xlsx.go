// Package export writes ranked result tables to spreadsheet files.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/dropstats/internal/stats"
)

const sheetName = "Results"

// WriteReportXLSX writes the rows of report, in their current order, to path.
func WriteReportXLSX(path string, report stats.Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	cols := stats.Columns(report.View)
	row := 1
	if report.Title != "" {
		if err := f.SetCellValue(sheetName, cellName(0, row), report.Title); err != nil {
			return err
		}
		titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 13}})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cellName(0, row), cellName(0, row), titleStyle); err != nil {
			return err
		}
		row += 2
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	for i, c := range cols {
		if err := f.SetCellValue(sheetName, cellName(i, row), stats.ColumnTitle(c, report.Sort, report.Sorted)); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, cellName(0, row), cellName(len(cols)-1, row), headerStyle); err != nil {
		return err
	}
	headerRow := row
	row++

	for _, r := range report.Rows {
		for i, c := range cols {
			if err := f.SetCellValue(sheetName, cellName(i, row), cellValue(c.Key, r)); err != nil {
				return err
			}
		}
		row++
	}

	if err := f.SetColWidth(sheetName, colName(0), colName(0), 18); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, colName(1), colName(len(cols)-1), 14); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cellName(0, headerRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save xlsx: %w", err)
	}
	return nil
}

// cellValue keeps numeric columns numeric. Non-finite values have no
// spreadsheet representation and are written as their table text.
func cellValue(column string, r stats.ResultRow) interface{} {
	v, ok := r.Value(column)
	if !ok {
		return stats.FormatCell(column, r)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return stats.FormatCell(column, r)
	}
	switch column {
	case stats.ColumnTimes, stats.ColumnQuantity:
		return int64(v)
	default:
		return v
	}
}

func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", colName(col), row)
}

func colName(idx int) string {
	name := ""
	for idx >= 0 {
		name = string(rune('A'+idx%26)) + name
		idx = idx/26 - 1
	}
	return name
}
