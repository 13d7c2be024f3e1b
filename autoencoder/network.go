package autoencoder

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// ErrSizeMismatch is returned when a vector does not match the Network's input width.
var ErrSizeMismatch = errors.New("vector size does not match network input size")

// Layer is a dense layer: Size neurons, each connected to all Inputs values.
type Layer struct {
	Inputs     int        `json:"inputs"`
	Size       int        `json:"size"`
	Activation Activation `json:"activation"`

	// ActivityL1 is the L1 penalty on this layer's outputs; zero disables it.
	ActivityL1 float64 `json:"activityL1,omitempty"`

	Weights [][]float64 `json:"weights"` // [Size][Inputs]
	Biases  []float64   `json:"biases"`
}

// Network is a stack of dense layers whose output has the same width as its input.
type Network struct {
	Layers []*Layer
}

// Config describes the bottleneck shape built by New.
type Config struct {
	InputSize int

	// Activations of the two encoding and two decoding layers, in order.
	Activations [4]Activation

	// Sparsity is the L1 activity penalty applied to the first encoding layer.
	Sparsity float64

	// Seed drives weight initialisation.
	Seed int64
}

// DefaultConfig returns the tanh/relu/tanh/relu bottleneck with a 1e-5 activity penalty.
func DefaultConfig(inputSize int) Config {
	return Config{
		InputSize:   inputSize,
		Activations: [4]Activation{Tanh, ReLU, Tanh, ReLU},
		Sparsity:    1e-5,
		Seed:        42,
	}
}

// LayerSizes returns the widths of the four layers built for inputSize features.
func LayerSizes(inputSize int) [4]int {
	half := max(1, (inputSize+1)/2)
	quarter := max(1, (half+1)/2)
	return [4]int{half, quarter, half, inputSize}
}

// New builds and initialises a Network from cfg.
func New(cfg Config) (*Network, error) {
	if cfg.InputSize <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", cfg.InputSize)
	}
	if cfg.Sparsity < 0 {
		return nil, errors.Errorf("sparsity must not be negative, got %g", cfg.Sparsity)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sizes := LayerSizes(cfg.InputSize)

	net := &Network{Layers: make([]*Layer, len(sizes))}
	inputs := cfg.InputSize
	for i, size := range sizes {
		act := cfg.Activations[i]
		if act == "" {
			act = Linear
		}
		l := &Layer{Inputs: inputs, Size: size, Activation: act}
		if i == 0 {
			l.ActivityL1 = cfg.Sparsity
		}
		glorotUniform(l, rng)
		net.Layers[i] = l
		inputs = size
	}

	return net, nil
}

// InputSize returns the expected number of input values.
func (net *Network) InputSize() int {
	if len(net.Layers) == 0 {
		return 0
	}
	return net.Layers[0].Inputs
}

// validate checks that consecutive layer shapes line up and weights are well formed.
func (net *Network) validate() error {
	if len(net.Layers) == 0 {
		return errors.New("network has no layers")
	}

	inputs := net.Layers[0].Inputs
	for i, l := range net.Layers {
		if l.Inputs != inputs {
			return errors.Errorf("layer %d expects %d inputs, previous layer has %d outputs", i, l.Inputs, inputs)
		}
		if len(l.Weights) != l.Size || len(l.Biases) != l.Size {
			return errors.Errorf("layer %d: !(size == len(weights) == len(biases)) (%d, %d, %d)", i, l.Size, len(l.Weights), len(l.Biases))
		}
		for v := range l.Weights {
			if len(l.Weights[v]) != l.Inputs {
				return errors.Errorf("layer %d: len(weights[%d]) != inputs (%d != %d)", i, v, len(l.Weights[v]), l.Inputs)
			}
		}
		inputs = l.Size
	}

	if out := net.Layers[len(net.Layers)-1].Size; out != net.InputSize() {
		return errors.Errorf("output width %d differs from input width %d", out, net.InputSize())
	}
	return nil
}

// trace keeps the per-layer values of one forward pass for backpropagation.
// values[0] is the input; values[i+1] and sums[i] belong to layer i.
type trace struct {
	sums   [][]float64
	values [][]float64
}

func (net *Network) forward(x []float64) trace {
	tr := trace{
		sums:   make([][]float64, len(net.Layers)),
		values: make([][]float64, len(net.Layers)+1),
	}
	tr.values[0] = x

	in := x
	for li, l := range net.Layers {
		sums := make([]float64, l.Size)
		out := make([]float64, l.Size)
		for v := 0; v < l.Size; v++ {
			sum := l.Biases[v]
			w := l.Weights[v]
			for i, val := range in {
				sum += w[i] * val
			}
			sums[v] = sum
			out[v] = l.Activation.value(sum)
		}
		tr.sums[li] = sums
		tr.values[li+1] = out
		in = out
	}

	return tr
}

// Reconstruct returns the Network's output for x.
func (net *Network) Reconstruct(x []float64) ([]float64, error) {
	if len(x) != net.InputSize() {
		return nil, errors.Wrapf(ErrSizeMismatch, "got %d values, expected %d", len(x), net.InputSize())
	}

	tr := net.forward(x)
	out := tr.values[len(tr.values)-1]
	return append([]float64(nil), out...), nil
}

// sampleLoss is the reconstruction MSE of one forward pass plus the activity penalties.
func (net *Network) sampleLoss(tr trace) float64 {
	x := tr.values[0]
	out := tr.values[len(tr.values)-1]

	var sq float64
	for i := range x {
		d := out[i] - x[i]
		sq += d * d
	}
	loss := sq / float64(len(x))

	for li, l := range net.Layers {
		if l.ActivityL1 == 0 {
			continue
		}
		var abs float64
		for _, a := range tr.values[li+1] {
			abs += math.Abs(a)
		}
		loss += l.ActivityL1 * abs
	}

	return loss
}

// Loss returns the mean training objective over rows.
func (net *Network) Loss(rows [][]float64) (float64, error) {
	if len(rows) == 0 {
		return 0, errors.New("no rows to evaluate")
	}

	var total float64
	for i, row := range rows {
		if len(row) != net.InputSize() {
			return 0, errors.Wrapf(ErrSizeMismatch, "row %d has %d values, expected %d", i, len(row), net.InputSize())
		}
		total += net.sampleLoss(net.forward(row))
	}
	return total / float64(len(rows)), nil
}

// gradients mirrors the weight layout of a Network.
type gradients struct {
	weights [][][]float64
	biases  [][]float64
}

func newGradients(net *Network) *gradients {
	g := &gradients{
		weights: make([][][]float64, len(net.Layers)),
		biases:  make([][]float64, len(net.Layers)),
	}
	for li, l := range net.Layers {
		g.weights[li] = make([][]float64, l.Size)
		for v := range g.weights[li] {
			g.weights[li][v] = make([]float64, l.Inputs)
		}
		g.biases[li] = make([]float64, l.Size)
	}
	return g
}

func (g *gradients) reset() {
	for li := range g.weights {
		for v := range g.weights[li] {
			clear(g.weights[li][v])
		}
		clear(g.biases[li])
	}
}

// backward adds the gradient of sampleLoss(tr) w.r.t. every weight into g.
func (net *Network) backward(tr trace, g *gradients) {
	x := tr.values[0]
	out := tr.values[len(tr.values)-1]

	deltas := make([]float64, len(out))
	n := float64(len(x))
	for i := range out {
		deltas[i] = 2 * (out[i] - x[i]) / n
	}

	for li := len(net.Layers) - 1; li >= 0; li-- {
		l := net.Layers[li]
		values := tr.values[li+1]
		inputs := tr.values[li]

		if l.ActivityL1 != 0 {
			for v, a := range values {
				if a > 0 {
					deltas[v] += l.ActivityL1
				} else if a < 0 {
					deltas[v] -= l.ActivityL1
				}
			}
		}

		for v := range deltas {
			deltas[v] *= l.Activation.deriv(tr.sums[li][v], values[v])
		}

		var prev []float64
		if li > 0 {
			prev = make([]float64, l.Inputs)
		}
		for v, d := range deltas {
			if d == 0 {
				continue
			}
			gw := g.weights[li][v]
			w := l.Weights[v]
			for i, in := range inputs {
				gw[i] += d * in
				if prev != nil {
					prev[i] += d * w[i]
				}
			}
			g.biases[li][v] += d
		}
		deltas = prev
	}
}

// apply scales the accumulated gradients by 1/batch and hands them to opt.
func (net *Network) apply(g *gradients, batch int, opt Optimizer) {
	scale := 1 / float64(batch)
	opt.Next()

	slot := 0
	for li, l := range net.Layers {
		for v := range l.Weights {
			gw := g.weights[li][v]
			for i := range gw {
				gw[i] *= scale
			}
			opt.Update(slot, l.Weights[v], gw)
			slot++
		}
		gb := g.biases[li]
		for v := range gb {
			gb[v] *= scale
		}
		opt.Update(slot, l.Biases, gb)
		slot++
	}
}

// Clone returns a deep copy of the Network.
func (net *Network) Clone() *Network {
	c := &Network{Layers: make([]*Layer, len(net.Layers))}
	for li, l := range net.Layers {
		cl := *l
		cl.Weights = make([][]float64, len(l.Weights))
		for v := range l.Weights {
			cl.Weights[v] = append([]float64(nil), l.Weights[v]...)
		}
		cl.Biases = append([]float64(nil), l.Biases...)
		c.Layers[li] = &cl
	}
	return c
}
