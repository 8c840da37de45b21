package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	DefaultImgChannels = 1
	DefaultHiddenDim   = 16
	DefaultKernelSize  = 4
	DefaultStride      = 2
	DefaultLeakySlope  = 0.2
)

// DiscriminatorNet Abstraction for discriminator part of GAN. It's simple neural network actually.
type DiscriminatorNet struct {
	private *Network
}

// Discriminator Constructor for DiscriminatorNet
func Discriminator(Layers ...*Layer) *DiscriminatorNet {
	return &DiscriminatorNet{private: &Network{
		Name:   "discriminator",
		Layers: Layers,
	}}
}

// Out Returns reference to output node
func (net *DiscriminatorNet) Out() *gorgonia.Node {
	return net.private.out
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Layers Returns sequence of layers
func (net *DiscriminatorNet) Layers() []*Layer {
	return net.private.Layers
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *DiscriminatorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	if err := net.private.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	return nil
}

// DiscriminatorConfig Hyperparameters of DCGAN discriminator
//
// ImgChannels - number of channels in spectrogram (1 for log-mel, 2 for magnitude + instantaneous frequency)
// HiddenDim - the inner dimension
//
type DiscriminatorConfig struct {
	ImgChannels int
	HiddenDim   int
	KernelSize  int
	Stride      int
	LeakySlope  float64
}

// DefaultDiscriminatorConfig img_chan=1, hidden_dim=16, kernel 4, stride 2, LeakyReLU(0.2)
func DefaultDiscriminatorConfig() DiscriminatorConfig {
	return DiscriminatorConfig{
		ImgChannels: DefaultImgChannels,
		HiddenDim:   DefaultHiddenDim,
		KernelSize:  DefaultKernelSize,
		Stride:      DefaultStride,
		LeakySlope:  DefaultLeakySlope,
	}
}

func (conf DiscriminatorConfig) withDefaults() DiscriminatorConfig {
	if conf.ImgChannels <= 0 {
		conf.ImgChannels = DefaultImgChannels
	}
	if conf.HiddenDim <= 0 {
		conf.HiddenDim = DefaultHiddenDim
	}
	if conf.KernelSize <= 0 {
		conf.KernelSize = DefaultKernelSize
	}
	if conf.Stride <= 0 {
		conf.Stride = DefaultStride
	}
	if conf.LeakySlope == 0 {
		conf.LeakySlope = DefaultLeakySlope
	}
	return conf
}

// OutputSize Returns number of per-sample outputs for input of size height x width.
// It's the number of patches the last convolution produces.
func (conf DiscriminatorConfig) OutputSize(height, width int) (int, error) {
	conf = conf.withDefaults()
	h, w := height, width
	for i := 0; i < 3; i++ {
		h = ConvOutputSize(h, conf.KernelSize, conf.Stride, 0)
		w = ConvOutputSize(w, conf.KernelSize, conf.Stride, 0)
		if h < 1 || w < 1 {
			return 0, fmt.Errorf("Input %dx%d is too small for discriminator: convolution #%d gives %dx%d", height, width, i, h, w)
		}
	}
	return h * w, nil
}

// DCGANDiscriminator Defines DCGAN discriminator on provided graph:
//
// [conv -> batchnorm -> LeakyReLU](img_chan -> hidden) => [conv -> batchnorm -> LeakyReLU](hidden -> 2*hidden) => conv(2*hidden -> 1) => flatten(N, -1)
//
func DCGANDiscriminator(g *gorgonia.ExprGraph, conf DiscriminatorConfig) *DiscriminatorNet {
	conf = conf.withDefaults()
	layers := make([]*Layer, 0, 8)
	layers = append(layers, discriminatorBlock(g, 0, conf.ImgChannels, conf.HiddenDim, conf)...)
	layers = append(layers, discriminatorBlock(g, 1, conf.HiddenDim, 2*conf.HiddenDim, conf)...)
	layers = append(layers,
		convLayer(g, "discriminator_out", 2*conf.HiddenDim, 1, conf.KernelSize, conf.Stride, 0, NoActivation),
		&Layer{
			Type:       LayerFlatten,
			Activation: NoActivation,
		},
	)
	return Discriminator(layers...)
}

// discriminatorBlock convolution => batchnorm => LeakyReLU
func discriminatorBlock(g *gorgonia.ExprGraph, idx, inputChannels, outputChannels int, conf DiscriminatorConfig) []*Layer {
	prefix := fmt.Sprintf("discriminator_block%d", idx)
	return []*Layer{
		convLayer(g, prefix, inputChannels, outputChannels, conf.KernelSize, conf.Stride, 0, NoActivation),
		batchNormLayer(g, prefix, outputChannels, LeakyReLU(conf.LeakySlope)),
	}
}

func convLayer(g *gorgonia.ExprGraph, prefix string, inputChannels, outputChannels, kernelSize, stride, padding int, activation ActivationFunc) *Layer {
	w := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(outputChannels, inputChannels, kernelSize, kernelSize), gorgonia.WithName(prefix+"_conv_w"), gorgonia.WithInit(gorgonia.Gaussian(0, 0.02)))
	b := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, outputChannels, 1, 1), gorgonia.WithName(prefix+"_conv_b"), gorgonia.WithInit(gorgonia.Zeroes()))
	return &Layer{
		WeightNode:   w,
		BiasNode:     b,
		Type:         LayerConvolutional,
		Activation:   activation,
		KernelHeight: kernelSize,
		KernelWidth:  kernelSize,
		Padding:      []int{padding, padding},
		Stride:       []int{stride, stride},
		Dilation:     []int{1, 1},
	}
}

func batchNormLayer(g *gorgonia.ExprGraph, prefix string, channels int, activation ActivationFunc) *Layer {
	shp := tensor.Shape{1, channels, 1, 1}
	gamma := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(shp...), gorgonia.WithName(prefix+"_bn_gamma"), gorgonia.WithInit(gorgonia.Gaussian(1, 0.02)))
	beta := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(shp...), gorgonia.WithName(prefix+"_bn_beta"), gorgonia.WithInit(gorgonia.Zeroes()))
	return &Layer{
		WeightNode: gamma,
		BiasNode:   beta,
		Type:       LayerBatchNorm,
		Activation: activation,
		Epsilon:    DefaultBatchNormEpsilon,
	}
}
