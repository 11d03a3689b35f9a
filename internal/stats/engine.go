package stats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/verte-zerg/dropstats/internal/model"
	"github.com/verte-zerg/dropstats/internal/stagecode"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses "asc" or "desc", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q (use asc or desc)", s)
	}
}

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// SortRequest is a column and a direction.
type SortRequest struct {
	Column    string
	Direction Direction
}

// Engine holds the rows and the last sort request of one result view.
// Views must not share an Engine.
type Engine struct {
	parser  *stagecode.Parser
	rows    []ResultRow
	last    SortRequest
	hasLast bool
}

// NewEngine returns an Engine ordering codes with parser. A nil parser uses
// stagecode.Default.
func NewEngine(parser *stagecode.Parser) *Engine {
	if parser == nil {
		parser = stagecode.Default()
	}
	return &Engine{parser: parser}
}

// Parser returns the parser used for code and name ordering.
func (e *Engine) Parser() *stagecode.Parser {
	return e.parser
}

// BuildRows replaces the row set with rows derived from records.
func (e *Engine) BuildRows(records []model.DropRecord) []ResultRow {
	e.rows = BuildRows(records)
	return e.Rows()
}

// Rows returns a copy of the current row set.
func (e *Engine) Rows() []ResultRow {
	return append([]ResultRow(nil), e.rows...)
}

// Sort orders a copy of rows by column and direction, remembers the request
// and makes the result the current row set.
func (e *Engine) Sort(rows []ResultRow, column string, dir Direction) []ResultRow {
	e.last = SortRequest{Column: column, Direction: dir}
	e.hasLast = true
	sorted := SortRows(rows, ColumnComparator(e.parser, column, dir))
	e.rows = append([]ResultRow(nil), sorted...)
	return sorted
}

// Apply sorts the current row set by req.
func (e *Engine) Apply(req SortRequest) []ResultRow {
	return e.Sort(e.rows, req.Column, req.Direction)
}

// LastSort returns the most recent sort request.
func (e *Engine) LastSort() (SortRequest, bool) {
	return e.last, e.hasLast
}

// Resort re-applies the last sort request to the current row set. Without a
// previous request the rows are returned in build order.
func (e *Engine) Resort() []ResultRow {
	if !e.hasLast {
		return e.Rows()
	}
	return e.Apply(e.last)
}

// Refresh rebuilds rows from a new snapshot and re-applies the last sort.
func (e *Engine) Refresh(records []model.DropRecord) []ResultRow {
	e.BuildRows(records)
	return e.Resort()
}

// SortRows returns a stably sorted copy of rows.
func SortRows(rows []ResultRow, cmp Comparator) []ResultRow {
	out := append([]ResultRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return cmp(out[i], out[j]) < 0
	})
	return out
}
