package flights

import (
	"sort"

	"surveil-screener/models"
)

// RankThreshold marks the k rows with the highest error as positive. Rows with equal
// error are ordered by identifier, ascending, so the cut is deterministic under ties.
// It returns the labelled copy of rows (in input order) and the error of the last row
// kept, or 0 when nothing is kept.
func RankThreshold(rows []models.ScoreRow, k int) ([]models.ScoreRow, float64) {
	out := make([]models.ScoreRow, len(rows))
	copy(out, rows)

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := out[order[i]], out[order[j]]
		if a.Error != b.Error {
			return a.Error > b.Error
		}
		return a.ID < b.ID
	})

	k = min(max(k, 0), len(out))
	for i := range out {
		out[i].Predicted = false
	}
	boundary := 0.0
	for _, idx := range order[:k] {
		out[idx].Predicted = true
		boundary = out[idx].Error
	}

	return out, boundary
}

// FixedThreshold marks every row whose error is strictly greater than cutoff.
func FixedThreshold(rows []models.ScoreRow, cutoff float64) []models.ScoreRow {
	out := make([]models.ScoreRow, len(rows))
	for i, row := range rows {
		row.Predicted = row.Error > cutoff
		out[i] = row
	}
	return out
}

// Candidates returns the sorted identifiers of the positive rows.
func Candidates(rows []models.ScoreRow) []string {
	var ids []string
	for _, row := range rows {
		if row.Predicted {
			ids = append(ids, row.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// SortByError orders a copy of rows from the highest error down, ties by identifier.
func SortByError(rows []models.ScoreRow) []models.ScoreRow {
	out := make([]models.ScoreRow, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Error != out[j].Error {
			return out[i].Error > out[j].Error
		}
		return out[i].ID < out[j].ID
	})
	return out
}
