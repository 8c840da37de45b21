package techno_gan

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node) (*gorgonia.Node, error)

func NoActivation(a *gorgonia.Node) (*gorgonia.Node, error) { return a, nil }
func Tanh(a *gorgonia.Node) (*gorgonia.Node, error)         { return gorgonia.Tanh(a) }
func Sigmoid(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Sigmoid(a) }
func Rectify(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }

// LeakyReLU Returns activation f(x) = alpha*x for x < 0 and x otherwise.
// DCGAN blocks use alpha = 0.2
func LeakyReLU(alpha float64) ActivationFunc {
	return func(a *gorgonia.Node) (*gorgonia.Node, error) {
		return gorgonia.LeakyRelu(a, alpha)
	}
}

// ActivationByName Returns activation function for its configuration name.
//
// Known names: "none" (or empty string), "tanh", "sigmoid", "relu", "leaky_relu" (alpha = 0.2)
//
func ActivationByName(name string) (ActivationFunc, error) {
	switch name {
	case "", "none":
		return NoActivation, nil
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	case "relu":
		return Rectify, nil
	case "leaky_relu":
		return LeakyReLU(DefaultLeakySlope), nil
	default:
		return nil, fmt.Errorf("Activation '%s' is not handled", name)
	}
}
