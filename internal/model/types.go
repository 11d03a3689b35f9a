// Package model defines shared data structures.
package model

import "time"

// DataSource selects which drop records back a result view.
type DataSource string

const (
	SourceGlobal   DataSource = "global"
	SourcePersonal DataSource = "personal"
)

// Stage categories. Anything other than CategorySub ranks with main stages.
const (
	CategoryMain = "main"
	CategorySub  = "sub"
)

// StageTypeNormal marks a regular (non-challenge) variant of a stage.
const StageTypeNormal = "normal"

// ViewConfig defines the initial state of the result views.
type ViewConfig struct {
	ItemID    string
	StageID   string
	Source    DataSource
	Sort      string
	Direction string
}

// ParserConfig configures stage code parsing.
type ParserConfig struct {
	Delimiter string
	Locale    string
}

// Chapter groups stages; Stages keep their display order.
type Chapter struct {
	ID     string
	Name   string
	Type   string
	Stages []Stage
}

// Stage describes a single sortie.
type Stage struct {
	ID        string
	Code      string
	Category  string
	StageType string
	APCost    float64
	ChapterID string
}

// Item is a droppable item.
type Item struct {
	ID       string
	Name     string
	SortID   int
	ItemType string
}

// DropRecord is one observed counter pair for a stage and an item.
type DropRecord struct {
	Stage    *Stage
	Item     *Item
	Times    int
	Quantity int
}

// ItemResult is a snapshot of all drop records for one item.
type ItemResult struct {
	Item  Item
	Drops []DropRecord
}

// StageResult is a snapshot of all drop records for one stage.
type StageResult struct {
	Stage Stage
	Drops []DropRecord
}

// Upload summarizes a personal data upload.
type Upload struct {
	ID        string
	Source    DataSource
	CreatedAt time.Time
	Records   int
}

// MatrixEntry is a raw drop counter keyed by stage and item IDs.
type MatrixEntry struct {
	StageID  string
	ItemID   string
	Times    int
	Quantity int
}

// Dataset is a complete set of chapters, items and drop counters.
type Dataset struct {
	Chapters []Chapter
	Items    []Item
	Matrix   []MatrixEntry
}

// StageCount returns the number of stages across all chapters.
func (d Dataset) StageCount() int {
	n := 0
	for _, ch := range d.Chapters {
		n += len(ch.Stages)
	}
	return n
}
