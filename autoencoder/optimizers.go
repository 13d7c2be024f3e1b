package autoencoder

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Optimizer turns accumulated gradients into weight changes.
type Optimizer interface {
	// Next is called once per mini-batch, before any Update for that batch.
	Next()

	// Update adjusts params in place, given their gradients. slot identifies the
	// parameter group so that stateful optimizers can keep per-group moments; the same
	// slot is always passed the same-length slices.
	Update(slot int, params, grads []float64)
}

// NewOptimizer returns the optimizer registered under name ("adam" or "sgd").
func NewOptimizer(name string, learningRate float64) (Optimizer, error) {
	if learningRate <= 0 {
		return nil, errors.Errorf("learning rate must be positive, got %g", learningRate)
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "adam", "":
		return Adam(learningRate), nil
	case "sgd", "gradient-descent":
		return SGD(learningRate), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", name)
	}
}

type sgd struct {
	rate float64
}

// SGD returns plain gradient descent with a constant learning rate.
func SGD(learningRate float64) Optimizer {
	return &sgd{rate: learningRate}
}

func (g *sgd) Next() {}

func (g *sgd) Update(slot int, params, grads []float64) {
	for i := range params {
		params[i] -= g.rate * grads[i]
	}
}

type adam struct {
	rate, beta1, beta2, epsilon float64

	step int
	m, v map[int][]float64
}

// Adam returns the Adam optimizer with the usual defaults (β1=0.9, β2=0.999, ε=1e-7).
func Adam(learningRate float64) Optimizer {
	return &adam{
		rate:    learningRate,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-7,
		m:       make(map[int][]float64),
		v:       make(map[int][]float64),
	}
}

func (a *adam) Next() {
	a.step++
}

func (a *adam) Update(slot int, params, grads []float64) {
	m, ok := a.m[slot]
	if !ok {
		m = make([]float64, len(params))
		a.m[slot] = m
		a.v[slot] = make([]float64, len(params))
	}
	v := a.v[slot]

	t := float64(max(a.step, 1))
	rate := a.rate * math.Sqrt(1-math.Pow(a.beta2, t)) / (1 - math.Pow(a.beta1, t))

	for i, g := range grads {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		params[i] -= rate * m[i] / (math.Sqrt(v[i]) + a.epsilon)
	}
}
