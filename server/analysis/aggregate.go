package analysis

import (
	"sort"

	"formcoach/server/models"
)

// OverallScore combines per-criterion scores into one number using the
// weights of the criteria actually present, so missing criteria drop out
// and the remaining weights renormalize. No scored criteria means zero.
// Keys are iterated in sorted order to keep the floating-point sum stable.
func OverallScore(scores map[string]models.FormScore, weights map[string]float64) models.FormScore {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	var weighted, total float64
	for _, name := range names {
		w, ok := weights[name]
		if !ok {
			continue
		}
		weighted += float64(scores[name]) * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return models.FormScore(weighted / total)
}
