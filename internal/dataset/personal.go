package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/verte-zerg/dropstats/internal/model"
)

// Personal is a locally recorded upload: sortie counts per stage and
// dropped quantities per stage and item.
type Personal struct {
	StageTimes map[string]int            `json:"stageTimes"`
	DropMatrix map[string]map[string]int `json:"dropMatrix"`
}

// LoadPersonal reads a personal upload JSON file.
func LoadPersonal(path string) (Personal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Personal{}, fmt.Errorf("failed to read personal data: %w", err)
	}
	var p Personal
	if err := json.Unmarshal(data, &p); err != nil {
		return Personal{}, fmt.Errorf("failed to decode personal data: %w", err)
	}
	if len(p.StageTimes) == 0 || len(p.DropMatrix) == 0 {
		return Personal{}, fmt.Errorf("%w: personal data needs both stageTimes and dropMatrix", ErrInvalid)
	}
	return p, nil
}

// Entries converts the upload into matrix entries ordered by stage then item.
func (p Personal) Entries() ([]model.MatrixEntry, error) {
	stageIDs := make([]string, 0, len(p.DropMatrix))
	for id := range p.DropMatrix {
		stageIDs = append(stageIDs, id)
	}
	sort.Strings(stageIDs)

	var entries []model.MatrixEntry
	var problems []string
	for _, stageID := range stageIDs {
		times, ok := p.StageTimes[stageID]
		if !ok {
			problems = append(problems, fmt.Sprintf("stage %q has drops but no stageTimes", stageID))
			continue
		}
		drops := p.DropMatrix[stageID]
		itemIDs := make([]string, 0, len(drops))
		for id := range drops {
			itemIDs = append(itemIDs, id)
		}
		sort.Strings(itemIDs)
		for _, itemID := range itemIDs {
			entries = append(entries, model.MatrixEntry{
				StageID:  stageID,
				ItemID:   itemID,
				Times:    times,
				Quantity: drops[itemID],
			})
		}
	}
	if err := problemsError(problems); err != nil {
		return nil, err
	}
	return entries, nil
}

// ValidateAgainst checks that entries only reference stages and items of ds.
func ValidateAgainst(entries []model.MatrixEntry, chapters []model.Chapter, items []model.Item) error {
	stages := map[string]struct{}{}
	for _, ch := range chapters {
		for _, st := range ch.Stages {
			stages[st.ID] = struct{}{}
		}
	}
	itemSet := map[string]struct{}{}
	for _, it := range items {
		itemSet[it.ID] = struct{}{}
	}
	var problems []string
	for _, e := range entries {
		problems = append(problems, entryProblems(e, stages, itemSet)...)
	}
	return problemsError(problems)
}
