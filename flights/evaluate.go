package flights

import (
	"fmt"
	"sort"
	"strings"

	"surveil-screener/models"
)

// ConfusionMatrix cross-tabulates predicted against actual class. Rows without an actual
// class are skipped; any class other than positive counts as negative.
func ConfusionMatrix(rows []models.ScoreRow, positive string) models.Confusion {
	var c models.Confusion
	for _, row := range rows {
		if row.Actual == "" {
			continue
		}
		actual := strings.EqualFold(row.Actual, positive)
		switch {
		case actual && row.Predicted:
			c.TruePositive++
		case actual && !row.Predicted:
			c.FalseNegative++
		case !actual && row.Predicted:
			c.FalsePositive++
		default:
			c.TrueNegative++
		}
	}
	return c
}

// ConfusionStats derives precision, recall and accuracy. Undefined ratios are 0.
func ConfusionStats(c models.Confusion) (precision, recall, accuracy float64) {
	if d := c.TruePositive + c.FalsePositive; d > 0 {
		precision = float64(c.TruePositive) / float64(d)
	}
	if d := c.TruePositive + c.FalseNegative; d > 0 {
		recall = float64(c.TruePositive) / float64(d)
	}
	if total := c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative; total > 0 {
		accuracy = float64(c.TruePositive+c.TrueNegative) / float64(total)
	}
	return precision, recall, accuracy
}

// FormatConfusion renders the matrix as a small text table, actual classes as rows.
func FormatConfusion(c models.Confusion, positive string) string {
	negative := "other"
	if strings.EqualFold(positive, negative) {
		negative = "not-" + positive
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %10s %10s\n", "Actual \\ Pred", truncate(positive, 10), truncate(negative, 10))
	fmt.Fprintf(&b, "%-15s %10d %10d\n", truncate(positive, 15), c.TruePositive, c.FalseNegative)
	fmt.Fprintf(&b, "%-15s %10d %10d\n", truncate(negative, 15), c.FalsePositive, c.TrueNegative)
	return b.String()
}

// OverlapReport compares this run's candidates with a reference list.
type OverlapReport struct {
	Size  int      `json:"size"`
	IDs   []string `json:"ids"`
	OnlyA int      `json:"onlyA"`
	OnlyB int      `json:"onlyB"`
}

// Overlap intersects two identifier sets. Duplicates within a list count once.
func Overlap(a, b []string) OverlapReport {
	setA := toSet(a)
	setB := toSet(b)

	ids := make([]string, 0)
	for id := range setA {
		if _, ok := setB[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return OverlapReport{
		Size:  len(ids),
		IDs:   ids,
		OnlyA: len(setA) - len(ids),
		OnlyB: len(setB) - len(ids),
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
