package autoencoder

import (
	"math"
	"math/rand"
)

// glorotUniform fills the weights of l with values drawn uniformly from
// [-limit, limit], limit = sqrt(6 / (fan_in + fan_out)). Biases start at zero.
func glorotUniform(l *Layer, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(l.Inputs+l.Size))

	l.Weights = make([][]float64, l.Size)
	for v := range l.Weights {
		l.Weights[v] = make([]float64, l.Inputs)
		for in := range l.Weights[v] {
			l.Weights[v][in] = (2*rng.Float64() - 1) * limit
		}
	}
	l.Biases = make([]float64, l.Size)
}
