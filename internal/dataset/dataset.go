// Package dataset decodes drop datasets and personal uploads.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/verte-zerg/dropstats/internal/model"
)

// ErrInvalid marks a dataset that decodes but breaks referential or value
// constraints.
var ErrInvalid = errors.New("invalid dataset")

// Format is a dataset encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

type document struct {
	Chapters []chapterDoc `json:"chapters" msgpack:"chapters"`
	Items    []itemDoc    `json:"items" msgpack:"items"`
	Matrix   []entryDoc   `json:"matrix" msgpack:"matrix"`
}

type chapterDoc struct {
	ID     string     `json:"id" msgpack:"id"`
	Name   string     `json:"name" msgpack:"name"`
	Type   string     `json:"type" msgpack:"type"`
	Stages []stageDoc `json:"stages" msgpack:"stages"`
}

type stageDoc struct {
	ID        string  `json:"id" msgpack:"id"`
	Code      string  `json:"code" msgpack:"code"`
	Category  string  `json:"category" msgpack:"category"`
	StageType string  `json:"stageType" msgpack:"stageType"`
	APCost    float64 `json:"apCost" msgpack:"apCost"`
}

type itemDoc struct {
	ID       string `json:"id" msgpack:"id"`
	Name     string `json:"name" msgpack:"name"`
	SortID   int    `json:"sortId" msgpack:"sortId"`
	ItemType string `json:"itemType" msgpack:"itemType"`
}

type entryDoc struct {
	StageID  string `json:"stageId" msgpack:"stageId"`
	ItemID   string `json:"itemId" msgpack:"itemId"`
	Times    int    `json:"times" msgpack:"times"`
	Quantity int    `json:"quantity" msgpack:"quantity"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mp":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported dataset extension %q (use .json or .msgpack)", filepath.Ext(path))
	}
}

// Load reads, decodes and validates a dataset file.
func Load(path string) (model.Dataset, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return model.Dataset{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("failed to read dataset: %w", err)
	}
	ds, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return model.Dataset{}, err
	}
	if err := Validate(ds); err != nil {
		return model.Dataset{}, err
	}
	return ds, nil
}

// Decode decodes a dataset document without validating it.
func Decode(r io.Reader, format Format) (model.Dataset, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return model.Dataset{}, fmt.Errorf("failed to decode json dataset: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&doc); err != nil {
			return model.Dataset{}, fmt.Errorf("failed to decode msgpack dataset: %w", err)
		}
	default:
		return model.Dataset{}, fmt.Errorf("unknown dataset format %q", format)
	}
	return doc.toModel(), nil
}

// Encode writes ds in the given format.
func Encode(w io.Writer, ds model.Dataset, format Format) error {
	doc := fromModel(ds)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("unknown dataset format %q", format)
	}
}

func (d document) toModel() model.Dataset {
	ds := model.Dataset{
		Chapters: make([]model.Chapter, 0, len(d.Chapters)),
		Items:    make([]model.Item, 0, len(d.Items)),
		Matrix:   make([]model.MatrixEntry, 0, len(d.Matrix)),
	}
	for _, ch := range d.Chapters {
		chapter := model.Chapter{ID: ch.ID, Name: ch.Name, Type: ch.Type}
		for _, st := range ch.Stages {
			stageType := st.StageType
			if stageType == "" {
				stageType = model.StageTypeNormal
			}
			category := st.Category
			if category == "" {
				category = model.CategoryMain
			}
			chapter.Stages = append(chapter.Stages, model.Stage{
				ID:        st.ID,
				Code:      st.Code,
				Category:  category,
				StageType: stageType,
				APCost:    st.APCost,
				ChapterID: ch.ID,
			})
		}
		ds.Chapters = append(ds.Chapters, chapter)
	}
	for _, it := range d.Items {
		ds.Items = append(ds.Items, model.Item{ID: it.ID, Name: it.Name, SortID: it.SortID, ItemType: it.ItemType})
	}
	for _, e := range d.Matrix {
		ds.Matrix = append(ds.Matrix, model.MatrixEntry{StageID: e.StageID, ItemID: e.ItemID, Times: e.Times, Quantity: e.Quantity})
	}
	return ds
}

func fromModel(ds model.Dataset) document {
	var doc document
	for _, ch := range ds.Chapters {
		cd := chapterDoc{ID: ch.ID, Name: ch.Name, Type: ch.Type}
		for _, st := range ch.Stages {
			cd.Stages = append(cd.Stages, stageDoc{
				ID:        st.ID,
				Code:      st.Code,
				Category:  st.Category,
				StageType: st.StageType,
				APCost:    st.APCost,
			})
		}
		doc.Chapters = append(doc.Chapters, cd)
	}
	for _, it := range ds.Items {
		doc.Items = append(doc.Items, itemDoc{ID: it.ID, Name: it.Name, SortID: it.SortID, ItemType: it.ItemType})
	}
	for _, e := range ds.Matrix {
		doc.Matrix = append(doc.Matrix, entryDoc{StageID: e.StageID, ItemID: e.ItemID, Times: e.Times, Quantity: e.Quantity})
	}
	return doc
}

// Validate checks IDs, references and counters.
func Validate(ds model.Dataset) error {
	var problems []string
	stages := map[string]struct{}{}
	chapters := map[string]struct{}{}
	for _, ch := range ds.Chapters {
		if ch.ID == "" {
			problems = append(problems, "chapter with empty id")
		}
		if _, dup := chapters[ch.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate chapter %q", ch.ID))
		}
		chapters[ch.ID] = struct{}{}
		for _, st := range ch.Stages {
			if st.ID == "" {
				problems = append(problems, fmt.Sprintf("stage with empty id in chapter %q", ch.ID))
			}
			if _, dup := stages[st.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate stage %q", st.ID))
			}
			if st.APCost < 0 {
				problems = append(problems, fmt.Sprintf("stage %q has negative apCost", st.ID))
			}
			stages[st.ID] = struct{}{}
		}
	}
	items := map[string]struct{}{}
	for _, it := range ds.Items {
		if it.ID == "" {
			problems = append(problems, "item with empty id")
		}
		if _, dup := items[it.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate item %q", it.ID))
		}
		items[it.ID] = struct{}{}
	}
	for _, e := range ds.Matrix {
		problems = append(problems, entryProblems(e, stages, items)...)
	}
	return problemsError(problems)
}

func entryProblems(e model.MatrixEntry, stages, items map[string]struct{}) []string {
	var problems []string
	if _, ok := stages[e.StageID]; !ok {
		problems = append(problems, fmt.Sprintf("matrix entry references unknown stage %q", e.StageID))
	}
	if items != nil {
		if _, ok := items[e.ItemID]; !ok {
			problems = append(problems, fmt.Sprintf("matrix entry references unknown item %q", e.ItemID))
		}
	}
	if e.Times < 0 || e.Quantity < 0 {
		problems = append(problems, fmt.Sprintf("matrix entry %s/%s has negative counters", e.StageID, e.ItemID))
	}
	return problems
}

func problemsError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	const maxShown = 5
	shown := problems
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	msg := strings.Join(shown, "; ")
	if extra := len(problems) - len(shown); extra > 0 {
		msg = fmt.Sprintf("%s; and %d more", msg, extra)
	}
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}
