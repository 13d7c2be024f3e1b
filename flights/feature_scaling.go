package flights

// Feature Scaling
//
// Every feature is rescaled to [0, 1] with a min-max scaler before it reaches the
// network. Two modes are supported:
//
//   - per-pool: each pool is fit on its own minimum and maximum. Features of different
//     pools are then compressed against different reference ranges; this reproduces
//     the original analysis.
//   - fit-once: the scaler is fit on the training pool and the same bounds are applied
//     to every other pool. Values outside the training range are clipped when Clip is
//     set.
//
// A column whose range is zero in the fitted rows scales to 0 everywhere.

import (
	"errors"
	"fmt"
	"strings"
)

const constantRange = 1e-10

type ScalingMode string

const (
	ScalePerPool ScalingMode = "per-pool"
	ScaleFitOnce ScalingMode = "fit-once"
)

// ParseScalingMode accepts the configuration spelling of a ScalingMode.
func ParseScalingMode(value string) (ScalingMode, error) {
	switch ScalingMode(strings.ToLower(strings.TrimSpace(value))) {
	case ScalePerPool, "":
		return ScalePerPool, nil
	case ScaleFitOnce:
		return ScaleFitOnce, nil
	default:
		return "", fmt.Errorf("unknown scaling mode %q", value)
	}
}

// MinMaxScaler scales features to [0, 1] range based on min/max values
type MinMaxScaler struct {
	Min   []float64 `json:"min"`
	Range []float64 `json:"range"` // max - min
	Clip  bool      `json:"clip"`
}

// NewMinMaxScaler computes min-max scaling parameters from rows.
func NewMinMaxScaler(rows [][]float64) (*MinMaxScaler, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows provided")
	}

	featureCount := len(rows[0])
	if featureCount == 0 {
		return nil, errors.New("rows have no features")
	}

	// Initialize with first row
	min := make([]float64, featureCount)
	max := make([]float64, featureCount)
	copy(min, rows[0])
	copy(max, rows[0])

	// Find min and max for each dimension
	for _, row := range rows[1:] {
		if len(row) != featureCount {
			return nil, errors.New("inconsistent feature dimensions")
		}
		for i, val := range row {
			if val < min[i] {
				min[i] = val
			}
			if val > max[i] {
				max[i] = val
			}
		}
	}

	featureRange := make([]float64, featureCount)
	for i := range featureRange {
		featureRange[i] = max[i] - min[i]
	}

	return &MinMaxScaler{
		Min:   min,
		Range: featureRange,
	}, nil
}

// Transform applies min-max scaling to a feature vector
func (mms *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(mms.Min) {
		return nil, fmt.Errorf("scaler fit on %d features, got %d", len(mms.Min), len(features))
	}

	scaled := make([]float64, len(features))
	for i, val := range features {
		if mms.Range[i] < constantRange {
			continue
		}
		scaled[i] = (val - mms.Min[i]) / mms.Range[i]
		if mms.Clip {
			if scaled[i] < 0 {
				scaled[i] = 0
			}
			if scaled[i] > 1 {
				scaled[i] = 1
			}
		}
	}

	return scaled, nil
}

// TransformRows scales every row.
func (mms *MinMaxScaler) TransformRows(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := mms.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Normalizer applies a ScalingMode to pools. For fit-once it must see the training
// pool first.
type Normalizer struct {
	Mode ScalingMode
	Clip bool

	fitted *MinMaxScaler
}

func NewNormalizer(mode ScalingMode, clip bool) *Normalizer {
	return &Normalizer{Mode: mode, Clip: clip}
}

// NewNormalizerFromScaler restores a fit-once Normalizer from a stored scaler.
func NewNormalizerFromScaler(scaler *MinMaxScaler) *Normalizer {
	return &Normalizer{Mode: ScaleFitOnce, Clip: scaler.Clip, fitted: scaler}
}

// Scaler returns the scaler fit on the training pool; nil in per-pool mode.
func (n *Normalizer) Scaler() *MinMaxScaler {
	return n.fitted
}

// FitTraining scales the training pool and, for fit-once, remembers its bounds.
func (n *Normalizer) FitTraining(p Pool) (Pool, error) {
	if p.Len() == 0 {
		return Pool{}, fmt.Errorf("%s: %w", p.Name, ErrEmptyPool)
	}

	scaler, err := NewMinMaxScaler(p.Rows)
	if err != nil {
		return Pool{}, fmt.Errorf("fitting %s pool: %w", p.Name, err)
	}
	if n.Mode == ScaleFitOnce {
		scaler.Clip = n.Clip
		n.fitted = scaler
	}

	rows, err := scaler.TransformRows(p.Rows)
	if err != nil {
		return Pool{}, err
	}
	return p.withRows(rows), nil
}

// Apply scales any other pool according to the mode. Empty pools are returned as-is.
func (n *Normalizer) Apply(p Pool) (Pool, error) {
	if p.Len() == 0 {
		return p.withRows(nil), nil
	}

	var scaler *MinMaxScaler
	switch n.Mode {
	case ScaleFitOnce:
		if n.fitted == nil {
			return Pool{}, errors.New("fit-once normalizer has not seen the training pool")
		}
		scaler = n.fitted
	default:
		var err error
		scaler, err = NewMinMaxScaler(p.Rows)
		if err != nil {
			return Pool{}, fmt.Errorf("fitting %s pool: %w", p.Name, err)
		}
	}

	rows, err := scaler.TransformRows(p.Rows)
	if err != nil {
		return Pool{}, fmt.Errorf("scaling %s pool: %w", p.Name, err)
	}
	return p.withRows(rows), nil
}
