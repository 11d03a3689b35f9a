package stats

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/dropstats/internal/model"
	"github.com/verte-zerg/dropstats/internal/store"
)

func TestBuildItemReport(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "dropstats.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	ds := model.Dataset{
		Chapters: []model.Chapter{
			{ID: "main_01", Name: "Chapter 1", Stages: []model.Stage{
				{ID: "main_01-10", Code: "1-10", Category: model.CategoryMain, StageType: model.StageTypeNormal, APCost: 9},
				{ID: "main_01-07", Code: "1-7", Category: model.CategoryMain, StageType: model.StageTypeNormal, APCost: 6},
			}},
			{ID: "weekly", Name: "Supplies", Stages: []model.Stage{
				{ID: "wk_1", Code: "CE-1", Category: model.CategorySub, StageType: model.StageTypeNormal, APCost: 10},
			}},
		},
		Items: []model.Item{{ID: "30012", Name: "Orirock", SortID: 1}},
		Matrix: []model.MatrixEntry{
			{StageID: "main_01-10", ItemID: "30012", Times: 100, Quantity: 50},
			{StageID: "main_01-07", ItemID: "30012", Times: 100, Quantity: 100},
			{StageID: "wk_1", ItemID: "30012", Times: 100, Quantity: 200},
		},
	}
	if err := st.ReplaceDataset(ctx, ds, nil); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}

	e := NewEngine(nil)
	report, err := BuildItemReport(ctx, st, e, model.SourceGlobal, "30012", &SortRequest{Column: ColumnCode, Direction: Asc})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Title != "Orirock" || report.View != ViewItem || report.Records != 3 {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if got := codes(report.Rows); got[0] != "1-7" || got[1] != "1-10" || got[2] != "CE-1" {
		t.Fatalf("unexpected order: %v", got)
	}
	if len(report.Best) != 3 || report.Best[0].Code != "CE-1" {
		t.Fatalf("unexpected best rows: %v", codes(report.Best))
	}

	// A later report without an explicit request keeps the remembered sort.
	again, err := BuildItemReport(ctx, st, e, model.SourceGlobal, "30012", nil)
	if err != nil {
		t.Fatalf("build report again: %v", err)
	}
	if !again.Sorted || again.Sort.Column != ColumnCode {
		t.Fatalf("expected remembered sort, got %+v", again.Sort)
	}
	if got := codes(again.Rows); got[0] != "1-7" || got[2] != "CE-1" {
		t.Fatalf("unexpected order after refresh: %v", got)
	}

	stageReport, err := BuildStageReport(ctx, st, NewEngine(nil), model.SourceGlobal, "wk_1", nil)
	if err != nil {
		t.Fatalf("build stage report: %v", err)
	}
	if stageReport.Title != "CE-1" || stageReport.Sorted || len(stageReport.Rows) != 1 {
		t.Fatalf("unexpected stage report: %+v", stageReport)
	}
}
