package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for sequential neural network.
//
// Name - prefix for names of intermediate nodes
// Layers - simple sequence of layers
// out - alias to activated output of last layer
//
type Network struct {
	Name   string
	Layers []*Layer
	out    *gorgonia.Node
}

// Out Returns reference to output node
func (net *Network) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			if l.WeightNode != nil {
				learnables = append(learnables, l.WeightNode)
			}
			if l.BiasNode != nil {
				learnables = append(learnables, l.BiasNode)
			}
		}
	}
	return learnables
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *Network) Fwd(input *gorgonia.Node, batchSize int) error {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}
	if len(net.Layers) == 0 {
		return fmt.Errorf("Network '%s' must have one layer atleast", networkName)
	}
	lastActivatedLayer := input
	for i, layer := range net.Layers {
		if layer == nil {
			return fmt.Errorf("Network's layer #%d is nil", i)
		}
		layerNonActivated, err := layer.Fwd(batchSize, lastActivatedLayer)
		if err != nil {
			return errors.Wrapf(err, "[%s, Layer #%d (%s)] Can't feedforward input before activation", networkName, i, layer.Type)
		}
		gorgonia.WithName(fmt.Sprintf("%s_%d", networkName, i))(layerNonActivated)
		activation := layer.Activation
		if activation == nil {
			activation = NoActivation
		}
		layerActivated, err := activation(layerNonActivated)
		if err != nil {
			return errors.Wrapf(err, "Can't apply activation function to non-activated output of %s's layer #%d", networkName, i)
		}
		if layerActivated != layerNonActivated {
			gorgonia.WithName(fmt.Sprintf("%s_activated_%d", networkName, i))(layerActivated)
		}
		lastActivatedLayer = layerActivated
	}
	net.out = lastActivatedLayer
	return nil
}

// CloneOn Defines copy of network's structure on provided graph.
// Weights and biases of copy are initialized with current values of source nodes.
//
// g - graph for the copy
// name - name of the copied network. Also used as suffix for copied learnables
//
func (net *Network) CloneOn(g *gorgonia.ExprGraph, name string) (*Network, error) {
	cloned := &Network{
		Name:   name,
		Layers: make([]*Layer, len(net.Layers)),
	}
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("%s's layer #%d is nil", net.Name, i)
		}
		if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
			return nil, fmt.Errorf("%s's layer #%d has nil weight node", net.Name, i)
		}
		cloned.Layers[i] = &Layer{
			Activation:   l.Activation,
			Type:         l.Type,
			KernelHeight: l.KernelHeight,
			KernelWidth:  l.KernelWidth,
			Padding:      l.Padding,
			Stride:       l.Stride,
			Dilation:     l.Dilation,
			ReshapeDims:  l.ReshapeDims,
			Epsilon:      l.Epsilon,
			Scale:        l.Scale,
		}
		var err error
		if l.WeightNode != nil {
			cloned.Layers[i].WeightNode, err = cloneNode(g, l.WeightNode, name)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't clone weights of layer #%d", i)
			}
		}
		if l.BiasNode != nil {
			cloned.Layers[i].BiasNode, err = cloneNode(g, l.BiasNode, name)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't clone bias of layer #%d", i)
			}
		}
	}
	return cloned, nil
}

// CopyValuesFrom Copies values of learnables from network with the same structure
func (net *Network) CopyValuesFrom(src *Network) error {
	dst := net.Learnables()
	from := src.Learnables()
	if len(dst) != len(from) {
		return fmt.Errorf("Networks have different number of learnables: %d and %d", len(dst), len(from))
	}
	for i := range dst {
		dstData, err := float64Data(dst[i])
		if err != nil {
			return err
		}
		srcData, err := float64Data(from[i])
		if err != nil {
			return err
		}
		if len(dstData) != len(srcData) {
			return fmt.Errorf("Can't copy value of '%s' (%d elements) into '%s' (%d elements)", from[i].Name(), len(srcData), dst[i].Name(), len(dstData))
		}
		copy(dstData, srcData)
	}
	return nil
}

// float64Data Returns backing slice of node's value. Modifying it modifies value in-place
func float64Data(n *gorgonia.Node) ([]float64, error) {
	value, ok := n.Value().(tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("Node '%s' has no tensor value", n.Name())
	}
	data, ok := value.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("Node '%s' must hold float64 values, but got %v", n.Name(), value.Dtype())
	}
	return data, nil
}

func cloneNode(g *gorgonia.ExprGraph, n *gorgonia.Node, suffix string) (*gorgonia.Node, error) {
	value, ok := n.Value().(tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("Node '%s' has no tensor value", n.Name())
	}
	return gorgonia.NewTensor(g, n.Dtype(), n.Dims(), gorgonia.WithShape(n.Shape()...), gorgonia.WithName(n.Name()+"_"+suffix), gorgonia.WithValue(value.Clone())), nil
}
