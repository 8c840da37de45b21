package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

const (
	// DefaultLatentSize Size of noise vector when GeneratorConfig leaves it zero
	DefaultLatentSize = 100
)

// GeneratorNet Abstraction for generator part of GAN
type GeneratorNet struct {
	private *Network
}

// Generator Constructor for GeneratorNet
func Generator(Layers ...*Layer) *GeneratorNet {
	return &GeneratorNet{private: &Network{
		Name:   "generator",
		Layers: Layers,
	}}
}

// Out Returns reference to output node
func (net *GeneratorNet) Out() *gorgonia.Node {
	return net.private.out
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Fwd Initializates feedforward for provided latent space input
//
// input - Input node of shape (batchSize, latentSize)
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *GeneratorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	if err := net.private.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	return nil
}

// GeneratorConfig Hyperparameters of DCGAN-like generator
//
// LatentSize - size of noise vector. Zero means DefaultLatentSize
// ImgChannels, ImgHeight, ImgWidth - shape of single generated spectrogram. Height and width must be divisible by 4
// HiddenDim - the inner dimension (linear projection has 4*HiddenDim channels)
// OutActivation - activation of last layer
//
type GeneratorConfig struct {
	LatentSize    int
	ImgChannels   int
	ImgHeight     int
	ImgWidth      int
	HiddenDim     int
	OutActivation ActivationFunc
}

// withDefaults Fills zero latent size
func (conf GeneratorConfig) withDefaults() GeneratorConfig {
	if conf.LatentSize == 0 {
		conf.LatentSize = DefaultLatentSize
	}
	return conf
}

// Validate Checks that generator could be built
func (conf GeneratorConfig) Validate() error {
	if conf.LatentSize <= 0 {
		return fmt.Errorf("Latent size must be positive, but got %d", conf.LatentSize)
	}
	if conf.ImgChannels <= 0 || conf.HiddenDim <= 0 {
		return fmt.Errorf("Channels (%d) and hidden dim (%d) must be positive", conf.ImgChannels, conf.HiddenDim)
	}
	if conf.ImgHeight <= 0 || conf.ImgWidth <= 0 || conf.ImgHeight%4 != 0 || conf.ImgWidth%4 != 0 {
		return fmt.Errorf("Image size %dx%d must be positive and divisible by 4", conf.ImgHeight, conf.ImgWidth)
	}
	return nil
}

// DCGANGenerator Defines generator on provided graph:
//
// linear(latent -> 4*hidden*(H/4)*(W/4)) => reshape(N, 4*hidden, H/4, W/4) =>
// [upsample(2) -> conv3x3 -> batchnorm -> ReLU](4*hidden -> 2*hidden) =>
// [upsample(2) -> conv3x3](2*hidden -> img_chan) -> OutActivation
//
// batchSize - needed for reshaping linear projection into feature maps
//
func DCGANGenerator(g *gorgonia.ExprGraph, conf GeneratorConfig, batchSize int) (*GeneratorNet, error) {
	conf = conf.withDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad generator config")
	}
	outActivation := conf.OutActivation
	if outActivation == nil {
		outActivation = Tanh
	}
	baseChannels := 4 * conf.HiddenDim
	baseH, baseW := conf.ImgHeight/4, conf.ImgWidth/4
	projected := baseChannels * baseH * baseW

	w0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(projected, conf.LatentSize), gorgonia.WithName("generator_w0"), gorgonia.WithInit(gorgonia.Gaussian(0, 0.02)))
	b0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, projected), gorgonia.WithName("generator_b0"), gorgonia.WithInit(gorgonia.Zeroes()))

	layers := []*Layer{
		{
			WeightNode: w0,
			BiasNode:   b0,
			Type:       LayerLinear,
			Activation: Rectify,
		},
		{
			Type:        LayerReshape,
			Activation:  NoActivation,
			ReshapeDims: []int{batchSize, baseChannels, baseH, baseW},
		},
		{
			Type:       LayerUpsample,
			Activation: NoActivation,
			Scale:      2,
		},
		convLayer(g, "generator_block0", baseChannels, 2*conf.HiddenDim, 3, 1, 1, NoActivation),
		batchNormLayer(g, "generator_block0", 2*conf.HiddenDim, Rectify),
		{
			Type:       LayerUpsample,
			Activation: NoActivation,
			Scale:      2,
		},
		convLayer(g, "generator_out", 2*conf.HiddenDim, conf.ImgChannels, 3, 1, 1, outActivation),
	}
	return Generator(layers...), nil
}
