package export

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/dropstats/internal/model"
	"github.com/verte-zerg/dropstats/internal/stats"
)

func TestWriteReportXLSX(t *testing.T) {
	orirock := &model.Item{ID: "30012", Name: "Orirock"}
	s1 := &model.Stage{ID: "main_01-07", Code: "1-7", Category: model.CategoryMain, APCost: 6}
	s2 := &model.Stage{ID: "main_01-10", Code: "1-10", Category: model.CategoryMain, APCost: 9}
	e := stats.NewEngine(nil)
	e.BuildRows([]model.DropRecord{
		{Stage: s2, Item: orirock, Times: 50, Quantity: 0},
		{Stage: s1, Item: orirock, Times: 100, Quantity: 110},
	})
	rows := e.Apply(stats.SortRequest{Column: stats.ColumnCode, Direction: stats.Asc})
	report := stats.Report{
		Title:  "Orirock",
		View:   stats.ViewItem,
		Rows:   rows,
		Sort:   stats.SortRequest{Column: stats.ColumnCode, Direction: stats.Asc},
		Sorted: true,
	}

	path := filepath.Join(t.TempDir(), "out", "orirock.xlsx")
	if err := WriteReportXLSX(path, report); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	title, err := f.GetCellValue(sheetName, "A1")
	if err != nil || title != "Orirock" {
		t.Fatalf("unexpected title %q (%v)", title, err)
	}
	header, err := f.GetCellValue(sheetName, "A3")
	if err != nil || header != "Code ▲" {
		t.Fatalf("unexpected header %q (%v)", header, err)
	}
	first, _ := f.GetCellValue(sheetName, "A4")
	second, _ := f.GetCellValue(sheetName, "A5")
	if first != "1-7" || second != "1-10" {
		t.Fatalf("unexpected row order: %q, %q", first, second)
	}
	times, _ := f.GetCellValue(sheetName, "C4")
	if times != "100" {
		t.Fatalf("expected numeric times cell, got %q", times)
	}
	exp, _ := f.GetCellValue(sheetName, "F5")
	if exp != "+Inf" {
		t.Fatalf("expected infinite expectation as text, got %q", exp)
	}
}

func TestColName(t *testing.T) {
	cases := map[int]string{0: "A", 5: "F", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for idx, want := range cases {
		if got := colName(idx); got != want {
			t.Fatalf("colName(%d): expected %s, got %s", idx, want, got)
		}
	}
}
