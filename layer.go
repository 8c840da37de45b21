package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// For LayerBatchNorm WeightNode is γ and BiasNode is β, both shaped (1, C, 1, 1)
// For LayerConvolutional BiasNode (if any) is shaped (1, C_out, 1, 1)
//
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int

	// Epsilon for LayerBatchNorm
	Epsilon float64
	// Scale for LayerUpsample
	Scale int
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerReshape
	LayerBatchNorm
	LayerUpsample
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerFlatten:
		return "flatten"
	case LayerConvolutional:
		return "conv2d"
	case LayerReshape:
		return "reshape"
	case LayerBatchNorm:
		return "batchnorm2d"
	case LayerUpsample:
		return "upsample2d"
	default:
		return fmt.Sprintf("layer_type_%d", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerFlatten, LayerReshape, LayerUpsample}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Feedforward input through layer without applying activation function
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for linear bias
// input - Input node
//
func (l *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("Layer of type '%s' has nil weight node", l.Type)
	}
	switch l.Type {
	case LayerLinear:
		return l.fwdLinear(batchSize, input)
	case LayerConvolutional:
		return l.fwdConv(input)
	case LayerFlatten:
		if batchSize < 1 {
			return nil, fmt.Errorf("Can't flatten input with batch size %d", batchSize)
		}
		out, err := gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
		return out, nil
	case LayerReshape:
		out, err := gorgonia.Reshape(input, l.ReshapeDims)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't reshape input %v to %v", input.Shape(), l.ReshapeDims)
		}
		return out, nil
	case LayerBatchNorm:
		return batchNorm2d(input, l.WeightNode, l.BiasNode, l.Epsilon)
	case LayerUpsample:
		scale := l.Scale
		if scale < 1 {
			scale = 2
		}
		out, err := gorgonia.Upsample2D(input, scale)
		if err != nil {
			return nil, errors.Wrap(err, "Can't upsample[2D] input")
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Layer's type '%d' (uint16) is not handled", l.Type)
	}
}

func (l *Layer) fwdLinear(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	tOp, err := gorgonia.Transpose(l.WeightNode)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose weights")
	}
	out, err := gorgonia.Mul(input, tOp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply input and weights")
	}
	if l.BiasNode == nil {
		return out, nil
	}
	if batchSize < 2 {
		out, err = gorgonia.Add(out, l.BiasNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't add bias to non-activated output")
		}
		return out, nil
	}
	out, err = gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't add [in broadcast term with batch_size = %d] bias to non-activated output", batchSize)
	}
	return out, nil
}

func (l *Layer) fwdConv(input *gorgonia.Node) (*gorgonia.Node, error) {
	padding := l.Padding
	if padding == nil {
		padding = []int{0, 0}
	}
	stride := l.Stride
	if stride == nil {
		stride = []int{1, 1}
	}
	dilation := l.Dilation
	if dilation == nil {
		dilation = []int{1, 1}
	}
	out, err := gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, padding, stride, dilation)
	if err != nil {
		return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
	}
	if l.BiasNode == nil {
		return out, nil
	}
	// Bias is (1, C, 1, 1): repeat it over batch and both spatial axes
	out, err = gorgonia.BroadcastAdd(out, l.BiasNode, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, "Can't add per-channel bias to convolution output")
	}
	return out, nil
}

// ConvOutputSize Returns spatial size of Conv2d output along one axis
func ConvOutputSize(in, kernel, stride, padding int) int {
	if stride < 1 {
		stride = 1
	}
	return (in+2*padding-kernel)/stride + 1
}
