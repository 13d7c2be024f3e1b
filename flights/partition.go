package flights

import (
	"fmt"
	"math"
	"math/rand"

	"surveil-screener/models"
)

// Partitioned holds the three disjoint pools cut from the feature table.
type Partitioned struct {
	Labeled  Pool // records with a ground-truth class, for evaluation only
	Training Pool // uniform sample of the unlabeled remainder
	Scoring  Pool // everything else; never seen during training

	// MissingLabels counts labelled identifiers that are absent from the feature table.
	// They are ignored.
	MissingLabels int
}

// Partition moves every record with a label into the labeled pool, then draws
// round(fraction * remainder) records without replacement, using seed, as the training
// pool. The rest, in table order, is the scoring pool.
func Partition(table Table, labels map[string]string, fraction float64, seed int64) (Partitioned, error) {
	if fraction <= 0 || fraction > 1 || math.IsNaN(fraction) {
		return Partitioned{}, fmt.Errorf("training fraction must be in (0, 1], got %g", fraction)
	}

	var labeled, remainder []models.FeatureRecord
	var classes []string
	matched := 0
	for _, rec := range table.Records {
		if class, ok := labels[rec.ID]; ok {
			labeled = append(labeled, rec)
			classes = append(classes, class)
			matched++
			continue
		}
		remainder = append(remainder, rec)
	}

	k := 0
	if len(remainder) > 0 {
		k = int(math.Round(fraction * float64(len(remainder))))
		k = min(max(k, 1), len(remainder))
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(remainder))

	selected := make([]bool, len(remainder))
	training := make([]models.FeatureRecord, 0, k)
	for _, idx := range perm[:k] {
		selected[idx] = true
		training = append(training, remainder[idx])
	}

	scoring := make([]models.FeatureRecord, 0, len(remainder)-k)
	for idx, rec := range remainder {
		if !selected[idx] {
			scoring = append(scoring, rec)
		}
	}

	if classes == nil {
		classes = []string{}
	}

	return Partitioned{
		Labeled:       newPool("labeled", table.Columns, labeled, classes),
		Training:      newPool("training", table.Columns, training, nil),
		Scoring:       newPool("scoring", table.Columns, scoring, nil),
		MissingLabels: len(labels) - matched,
	}, nil
}

func newPool(name string, columns []string, records []models.FeatureRecord, classes []string) Pool {
	p := Pool{
		Name:    name,
		Columns: append([]string(nil), columns...),
		IDs:     make([]string, len(records)),
		Rows:    make([][]float64, len(records)),
		Classes: cloneStrings(classes),
	}
	for i, rec := range records {
		p.IDs[i] = rec.ID
		p.Rows[i] = append([]float64(nil), rec.Features...)
	}
	return p
}

// PoolFromTable wraps the whole table as a single unlabeled pool.
func PoolFromTable(name string, table Table) Pool {
	return newPool(name, table.Columns, table.Records, nil)
}
