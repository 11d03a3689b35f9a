package stats

import (
	"context"

	"github.com/verte-zerg/dropstats/internal/model"
)

// Source provides drop record snapshots.
type Source interface {
	ItemResult(ctx context.Context, source model.DataSource, itemID string) (model.ItemResult, error)
	StageResult(ctx context.Context, source model.DataSource, stageID string) (model.StageResult, error)
}

// Report is a ranked result table ready for rendering.
type Report struct {
	Title   string
	View    View
	Rows    []ResultRow
	Best    []ResultRow
	Sort    SortRequest
	Sorted  bool
	Records int
}

// BuildItemReport loads the drops of an item and ranks them with e. When req
// is nil the engine's remembered request, if any, is re-applied.
func BuildItemReport(ctx context.Context, src Source, e *Engine, source model.DataSource, itemID string, req *SortRequest) (Report, error) {
	res, err := src.ItemResult(ctx, source, itemID)
	if err != nil {
		return Report{}, err
	}
	title := res.Item.Name
	if title == "" {
		title = res.Item.ID
	}
	return buildReport(e, title, ViewItem, res.Drops, req), nil
}

// BuildStageReport loads the drops of a stage and ranks them with e.
func BuildStageReport(ctx context.Context, src Source, e *Engine, source model.DataSource, stageID string, req *SortRequest) (Report, error) {
	res, err := src.StageResult(ctx, source, stageID)
	if err != nil {
		return Report{}, err
	}
	return buildReport(e, res.Stage.Code, ViewStage, res.Drops, req), nil
}

func buildReport(e *Engine, title string, view View, drops []model.DropRecord, req *SortRequest) Report {
	var rows []ResultRow
	if req != nil {
		e.BuildRows(drops)
		rows = e.Apply(*req)
	} else {
		rows = e.Refresh(drops)
	}
	last, sorted := e.LastSort()
	return Report{
		Title:   title,
		View:    view,
		Rows:    rows,
		Best:    BestRows(rows, 3),
		Sort:    last,
		Sorted:  sorted,
		Records: len(drops),
	}
}
