package stats

import (
	"math"
	"sort"
)

// BestRows returns up to n rows with the lowest finite expectation, i.e. the
// cheapest stages to farm. Ties keep their input order.
func BestRows(rows []ResultRow, n int) []ResultRow {
	if n <= 0 || len(rows) == 0 {
		return nil
	}
	candidates := make([]ResultRow, 0, len(rows))
	for _, r := range rows {
		if math.IsNaN(r.Expectation) || math.IsInf(r.Expectation, 0) {
			continue
		}
		candidates = append(candidates, r)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Expectation < candidates[j].Expectation
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}
