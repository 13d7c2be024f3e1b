package flights

import (
	"fmt"
	"math"

	"surveil-screener/models"
)

// Reconstructor maps a normalised feature vector to its reconstruction.
type Reconstructor interface {
	Reconstruct(features []float64) ([]float64, error)
}

// ReconstructionError is the root-mean-square difference between x and its
// reconstruction y.
func ReconstructionError(x, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}

// Score reconstructs every row of p and returns one ScoreRow per record, in pool order,
// with the identifier (and class, for labeled pools) re-attached.
func Score(model Reconstructor, p Pool) ([]models.ScoreRow, error) {
	rows := make([]models.ScoreRow, p.Len())
	for i, features := range p.Rows {
		out, err := model.Reconstruct(features)
		if err != nil {
			return nil, fmt.Errorf("scoring %s record %s: %w", p.Name, p.IDs[i], err)
		}
		if len(out) != len(features) {
			return nil, fmt.Errorf("scoring %s record %s: reconstruction has %d values, expected %d", p.Name, p.IDs[i], len(out), len(features))
		}

		rows[i] = models.ScoreRow{
			ID:    p.IDs[i],
			Error: ReconstructionError(features, out),
		}
		if p.Labeled() {
			rows[i].Actual = p.Classes[i]
		}
	}
	return rows, nil
}
