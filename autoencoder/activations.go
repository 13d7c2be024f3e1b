package autoencoder

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Activation names the non-linearity applied to a layer's weighted sums.
type Activation string

const (
	Tanh    Activation = "tanh"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
	Linear  Activation = "linear"
)

// ParseActivation accepts the activation names used in configuration files.
func ParseActivation(name string) (Activation, error) {
	switch a := Activation(strings.ToLower(strings.TrimSpace(name))); a {
	case Tanh, ReLU, Sigmoid, Linear:
		return a, nil
	case "":
		return Linear, nil
	default:
		return "", errors.Errorf("unknown activation %q", name)
	}
}

func (a Activation) value(z float64) float64 {
	switch a {
	case Tanh:
		return math.Tanh(z)
	case ReLU:
		return math.Max(z, 0)
	case Sigmoid:
		return 1 / (1 + math.Exp(-z))
	default:
		return z
	}
}

// deriv returns d(out)/d(z), given both the input and the output of the activation.
func (a Activation) deriv(z, out float64) float64 {
	switch a {
	case Tanh:
		return 1 - out*out
	case ReLU:
		if z > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return out * (1 - out)
	default:
		return 1
	}
}
