package stats

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// View selects the column set of a result table.
type View int

const (
	// ViewItem lists the stages dropping one item.
	ViewItem View = iota
	// ViewStage lists the items dropped by one stage.
	ViewStage
)

// Column describes a table column.
type Column struct {
	Key   string
	Title string
}

var itemColumns = []Column{
	{Key: ColumnCode, Title: "Code"},
	{Key: ColumnAPCost, Title: "AP"},
	{Key: ColumnTimes, Title: "Times"},
	{Key: ColumnQuantity, Title: "Quantity"},
	{Key: ColumnRate, Title: "Rate"},
	{Key: ColumnExpectation, Title: "Expectation"},
}

var stageColumns = []Column{
	{Key: ColumnItem, Title: "Item"},
	{Key: ColumnTimes, Title: "Times"},
	{Key: ColumnQuantity, Title: "Quantity"},
	{Key: ColumnRate, Title: "Rate"},
	{Key: ColumnExpectation, Title: "Expectation"},
}

// Columns returns the columns displayed by view.
func Columns(view View) []Column {
	if view == ViewStage {
		return append([]Column(nil), stageColumns...)
	}
	return append([]Column(nil), itemColumns...)
}

// ValidColumn reports whether key is a column of view.
func ValidColumn(view View, key string) bool {
	for _, c := range Columns(view) {
		if c.Key == key {
			return true
		}
	}
	return false
}

// ColumnTitle returns the header for a column, with a sort marker when the
// column is the active one.
func ColumnTitle(col Column, req SortRequest, sorted bool) string {
	if !sorted || req.Column != col.Key {
		return col.Title
	}
	if req.Direction == Desc {
		return col.Title + " ▼"
	}
	return col.Title + " ▲"
}

// Cells formats row for the columns of view.
func Cells(view View, row ResultRow) []string {
	cols := Columns(view)
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, FormatCell(c.Key, row))
	}
	return out
}

// FormatCell formats one cell.
func FormatCell(column string, row ResultRow) string {
	switch column {
	case ColumnCode:
		return row.Code
	case ColumnItem:
		return row.ItemName()
	case ColumnAPCost:
		return strconv.FormatFloat(row.APCost, 'f', -1, 64)
	case ColumnTimes:
		return humanize.Comma(int64(row.Times))
	case ColumnQuantity:
		return humanize.Comma(int64(row.Quantity))
	case ColumnRate:
		return fmt.Sprintf("%.2f%%", row.Rate)
	case ColumnExpectation:
		return fmt.Sprintf("%.2f", row.Expectation)
	default:
		return ""
	}
}

// RenderRows prints rows as an aligned table.
func RenderRows(w io.Writer, title string, view View, rows []ResultRow, req SortRequest, sorted bool) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No drop records found.")
		return err
	}
	cols := Columns(view)
	headers := make([]string, 0, len(cols))
	rightAlign := map[int]bool{}
	for i, c := range cols {
		headers = append(headers, ColumnTitle(c, req, sorted))
		if c.Key != ColumnCode && c.Key != ColumnItem {
			rightAlign[i] = true
		}
	}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, Cells(view, r))
	}
	for _, line := range formatTable(headers, tableRows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = displayWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if w := displayWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := displayWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}

func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}
