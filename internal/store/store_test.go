package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/dropstats/internal/model"
)

func testDataset() model.Dataset {
	return model.Dataset{
		Chapters: []model.Chapter{
			{
				ID:   "main_01",
				Name: "Chapter 1",
				Type: "MAINLINE",
				Stages: []model.Stage{
					{ID: "main_01-07", Code: "1-7", Category: model.CategoryMain, StageType: model.StageTypeNormal, APCost: 6},
					{ID: "main_01-10", Code: "1-10", Category: model.CategoryMain, StageType: model.StageTypeNormal, APCost: 9},
				},
			},
			{
				ID:   "weekly",
				Name: "Supplies",
				Type: "WEEKLY",
				Stages: []model.Stage{
					{ID: "wk_melee_5", Code: "CE-5", Category: model.CategorySub, StageType: model.StageTypeNormal, APCost: 30},
				},
			},
			{ID: "empty", Name: "Empty", Type: "ACTIVITY"},
		},
		Items: []model.Item{
			{ID: "30012", Name: "Orirock", SortID: 2, ItemType: "MATERIAL"},
			{ID: "4001", Name: "LMD", SortID: 1, ItemType: "CURRENCY"},
		},
		Matrix: []model.MatrixEntry{
			{StageID: "main_01-07", ItemID: "30012", Times: 100, Quantity: 110},
			{StageID: "main_01-10", ItemID: "30012", Times: 50, Quantity: 20},
			{StageID: "wk_melee_5", ItemID: "4001", Times: 10, Quantity: 75000},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "dropstats.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestReplaceDatasetAndItemResult(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	calls := 0
	if err := st.ReplaceDataset(ctx, testDataset(), func() { calls++ }); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 progress calls, got %d", calls)
	}

	res, err := st.ItemResult(ctx, model.SourceGlobal, "30012")
	if err != nil {
		t.Fatalf("item result: %v", err)
	}
	if res.Item.Name != "Orirock" {
		t.Fatalf("unexpected item: %+v", res.Item)
	}
	if len(res.Drops) != 2 {
		t.Fatalf("expected 2 drops, got %d", len(res.Drops))
	}
	byCode := map[string]model.DropRecord{}
	for _, d := range res.Drops {
		byCode[d.Stage.Code] = d
	}
	d, ok := byCode["1-10"]
	if !ok {
		t.Fatalf("missing 1-10 drop: %+v", res.Drops)
	}
	if d.Times != 50 || d.Quantity != 20 || d.Stage.APCost != 9 || d.Stage.ChapterID != "main_01" {
		t.Fatalf("unexpected drop: %+v stage %+v", d, d.Stage)
	}
	if d.Item == nil || d.Item.ID != "30012" {
		t.Fatalf("expected item back-reference, got %+v", d.Item)
	}
}

func TestReplaceDatasetReplacesGlobalRecords(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.ReplaceDataset(ctx, testDataset(), nil); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}
	ds := testDataset()
	ds.Matrix = ds.Matrix[:1]
	if err := st.ReplaceDataset(ctx, ds, nil); err != nil {
		t.Fatalf("replace dataset again: %v", err)
	}
	res, err := st.ItemResult(ctx, model.SourceGlobal, "30012")
	if err != nil {
		t.Fatalf("item result: %v", err)
	}
	if len(res.Drops) != 1 {
		t.Fatalf("expected 1 drop after replace, got %d", len(res.Drops))
	}
}

func TestStageResult(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.ReplaceDataset(ctx, testDataset(), nil); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}
	res, err := st.StageResult(ctx, model.SourceGlobal, "wk_melee_5")
	if err != nil {
		t.Fatalf("stage result: %v", err)
	}
	if res.Stage.Code != "CE-5" || res.Stage.Category != model.CategorySub {
		t.Fatalf("unexpected stage: %+v", res.Stage)
	}
	if len(res.Drops) != 1 || res.Drops[0].Item.Name != "LMD" {
		t.Fatalf("unexpected drops: %+v", res.Drops)
	}

	if _, err := st.StageResult(ctx, model.SourceGlobal, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonalSource(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.ReplaceDataset(ctx, testDataset(), nil); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}

	if _, err := st.ItemResult(ctx, model.SourcePersonal, "30012"); !errors.Is(err, ErrNoPersonalData) {
		t.Fatalf("expected ErrNoPersonalData, got %v", err)
	}
	if _, err := st.LatestUpload(ctx, model.SourcePersonal); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing upload, got %v", err)
	}

	upload, err := st.ReplacePersonal(ctx, []model.MatrixEntry{
		{StageID: "main_01-07", ItemID: "30012", Times: 4, Quantity: 5},
	})
	if err != nil {
		t.Fatalf("replace personal: %v", err)
	}
	if upload.ID == "" || upload.Records != 1 {
		t.Fatalf("unexpected upload: %+v", upload)
	}
	ok, err := st.HasPersonalData(ctx)
	if err != nil || !ok {
		t.Fatalf("expected personal data, got %v %v", ok, err)
	}
	latest, err := st.LatestUpload(ctx, model.SourcePersonal)
	if err != nil {
		t.Fatalf("latest upload: %v", err)
	}
	if latest.ID != upload.ID {
		t.Fatalf("expected latest upload %s, got %s", upload.ID, latest.ID)
	}

	res, err := st.ItemResult(ctx, model.SourcePersonal, "30012")
	if err != nil {
		t.Fatalf("personal item result: %v", err)
	}
	if len(res.Drops) != 1 || res.Drops[0].Times != 4 {
		t.Fatalf("unexpected personal drops: %+v", res.Drops)
	}

	// Global import keeps personal records.
	if err := st.ReplaceDataset(ctx, testDataset(), nil); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}
	if ok, _ := st.HasPersonalData(ctx); !ok {
		t.Fatalf("expected personal data to survive a global import")
	}
}

func TestListChaptersAndItems(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.ReplaceDataset(ctx, testDataset(), nil); err != nil {
		t.Fatalf("replace dataset: %v", err)
	}

	chapters, err := st.ListChapters(ctx)
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	if chapters[0].ID != "main_01" || len(chapters[0].Stages) != 2 || chapters[0].Stages[1].Code != "1-10" {
		t.Fatalf("unexpected first chapter: %+v", chapters[0])
	}
	if len(chapters[2].Stages) != 0 {
		t.Fatalf("expected empty chapter, got %+v", chapters[2])
	}

	items, err := st.ListItems(ctx)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 || items[0].ID != "4001" {
		t.Fatalf("expected items ordered by sort id, got %+v", items)
	}
	if _, err := st.GetItem(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
