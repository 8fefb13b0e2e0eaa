package ranking

import (
	"sort"

	"github.com/xhad/bizintel/internal/models"
)

// MaxPerCategory caps how many URLs one category may contribute before backfill.
const MaxPerCategory = 2

// SelectDiverse picks at most maxURLs entries. A first pass walks the list in
// score order admitting at most MaxPerCategory per category; remaining slots
// are then filled with the highest-scoring entries not yet selected.
func SelectDiverse(scored []models.ScoredURL, maxURLs int) ([]models.ScoredURL, int) {
	if len(scored) == 0 || maxURLs <= 0 {
		return []models.ScoredURL{}, 0
	}

	sorted := make([]models.ScoredURL, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	selected := make([]models.ScoredURL, 0, maxURLs)
	taken := make([]bool, len(sorted))
	counts := make(map[models.Category]int)

	for i, s := range sorted {
		if len(selected) >= maxURLs {
			break
		}
		if counts[s.Category] < MaxPerCategory {
			selected = append(selected, s)
			taken[i] = true
			counts[s.Category]++
		}
	}

	for i, s := range sorted {
		if len(selected) >= maxURLs {
			break
		}
		if !taken[i] {
			selected = append(selected, s)
			taken[i] = true
		}
	}

	return selected, len(counts)
}

// TopByScore sorts by score descending (stable) and keeps the first maxURLs.
func TopByScore(scored []models.ScoredURL, maxURLs int) []models.ScoredURL {
	sorted := make([]models.ScoredURL, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if maxURLs < 0 {
		maxURLs = 0
	}
	if len(sorted) > maxURLs {
		sorted = sorted[:maxURLs]
	}
	return sorted
}
