// Package stats derives drop-rate statistics and ranks result rows.
package stats

import (
	"math"

	"github.com/verte-zerg/dropstats/internal/model"
)

// Sortable column keys.
const (
	ColumnCode        = "code"
	ColumnItem        = "item"
	ColumnAPCost      = "apCost"
	ColumnTimes       = "times"
	ColumnQuantity    = "quantity"
	ColumnRate        = "rate"
	ColumnExpectation = "expectation"
)

// ResultRow is one display row derived from a DropRecord.
type ResultRow struct {
	Code        string
	Stage       *model.Stage
	Item        *model.Item
	APCost      float64
	Times       int
	Quantity    int
	Rate        float64
	Expectation float64
}

// ItemName returns the item's display name, or its ID when unnamed.
func (r ResultRow) ItemName() string {
	if r.Item == nil {
		return ""
	}
	if r.Item.Name != "" {
		return r.Item.Name
	}
	return r.Item.ID
}

// Category returns the stage category of the row.
func (r ResultRow) Category() string {
	if r.Stage == nil {
		return ""
	}
	return r.Stage.Category
}

// Value returns the numeric value of column. ok is false for columns that
// are not numeric or not known.
func (r ResultRow) Value(column string) (v float64, ok bool) {
	switch column {
	case ColumnAPCost:
		return r.APCost, true
	case ColumnTimes:
		return float64(r.Times), true
	case ColumnQuantity:
		return float64(r.Quantity), true
	case ColumnRate:
		return r.Rate, true
	case ColumnExpectation:
		return r.Expectation, true
	default:
		return math.NaN(), false
	}
}

// BuildRows derives one row per record. Zero times or quantity produce
// non-finite rate or expectation, which are returned as-is.
func BuildRows(records []model.DropRecord) []ResultRow {
	rows := make([]ResultRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, buildRow(rec))
	}
	return rows
}

func buildRow(rec model.DropRecord) ResultRow {
	times := float64(rec.Times)
	quantity := float64(rec.Quantity)
	apCost := rec.Stage.APCost
	return ResultRow{
		Code:        rec.Stage.Code,
		Stage:       rec.Stage,
		Item:        rec.Item,
		APCost:      apCost,
		Times:       rec.Times,
		Quantity:    rec.Quantity,
		Rate:        Round2(quantity / times * 100),
		Expectation: Round2(times / quantity * apCost),
	}
}

// Round2 rounds v to two decimals, halves away from zero. Non-finite values
// are returned unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}
