package techno_gan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestConvOutputSize(t *testing.T) {
	assert.Equal(t, 31, ConvOutputSize(64, 4, 2, 0))
	assert.Equal(t, 64, ConvOutputSize(64, 3, 1, 1))
	assert.Equal(t, 62, ConvOutputSize(64, 3, 0, 0), "stride is at least 1")
}

func TestDiscriminatorConfig_OutputSize(t *testing.T) {
	conf := DefaultDiscriminatorConfig()
	patches, err := conf.OutputSize(64, 64)
	require.NoError(t, err)
	// 64 -> 31 -> 14 -> 6
	assert.Equal(t, 36, patches)

	patches, err = conf.OutputSize(128, 128)
	require.NoError(t, err)
	// 128 -> 63 -> 30 -> 14
	assert.Equal(t, 196, patches)

	_, err = conf.OutputSize(16, 16)
	assert.Error(t, err)
}

func TestDCGANDiscriminator(t *testing.T) {
	g := gorgonia.NewGraph()
	conf := DiscriminatorConfig{ImgChannels: 2, HiddenDim: 3}
	dis := DCGANDiscriminator(g, conf)
	require.Len(t, dis.Layers(), 8)
	// 3 convolutions (weights + bias) and 2 batchnorms (gamma + beta)
	require.Len(t, dis.Learnables(), 10)

	batchSize := 2
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 2, 32, 32), gorgonia.WithName("input"))
	require.NoError(t, dis.Fwd(input, batchSize))
	// 32 -> 15 -> 6 -> 2
	assert.Equal(t, []int{batchSize, 4}, []int(dis.Out().Shape()))

	rng := rand.New(rand.NewSource(1))
	backing := make([]float64, batchSize*2*32*32)
	for i := range backing {
		backing[i] = rng.NormFloat64()
	}
	require.NoError(t, gorgonia.Let(input, tensor.New(tensor.WithShape(batchSize, 2, 32, 32), tensor.WithBacking(backing))))
	var out gorgonia.Value
	gorgonia.Read(dis.Out(), &out)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	assert.Equal(t, []int{batchSize, 4}, []int(out.Shape()))
}

func TestDCGANGenerator(t *testing.T) {
	_, err := DCGANGenerator(gorgonia.NewGraph(), GeneratorConfig{LatentSize: 4, ImgChannels: 1, ImgHeight: 10, ImgWidth: 8, HiddenDim: 2}, 2)
	assert.Error(t, err, "height is not divisible by 4")

	g := gorgonia.NewGraph()
	batchSize := 3
	gen, err := DCGANGenerator(g, GeneratorConfig{LatentSize: 4, ImgChannels: 2, ImgHeight: 16, ImgWidth: 8, HiddenDim: 2}, batchSize)
	require.NoError(t, err)
	// linear + conv + batchnorm + conv
	assert.Len(t, gen.Learnables(), 8)

	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(batchSize, 4), gorgonia.WithName("latent"))
	require.NoError(t, gen.Fwd(input, batchSize))
	assert.Equal(t, []int{batchSize, 2, 16, 8}, []int(gen.Out().Shape()))

	require.NoError(t, gorgonia.Let(input, NormRandDense(rand.New(rand.NewSource(2)), batchSize, 4)))
	var out gorgonia.Value
	gorgonia.Read(gen.Out(), &out)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	for _, v := range out.Data().([]float64) {
		assert.True(t, v > -1 && v < 1, "tanh output")
	}
}

func TestDCGANGenerator_DefaultLatentSize(t *testing.T) {
	gen, err := DCGANGenerator(gorgonia.NewGraph(), GeneratorConfig{ImgChannels: 1, ImgHeight: 8, ImgWidth: 8, HiddenDim: 1}, 2)
	require.NoError(t, err)
	// w0 projects latent vector into 4*hidden*(H/4)*(W/4) values
	assert.Equal(t, []int{4 * 2 * 2, DefaultLatentSize}, []int(gen.Learnables()[0].Shape()))

	_, err = DCGANGenerator(gorgonia.NewGraph(), GeneratorConfig{LatentSize: -1, ImgChannels: 1, ImgHeight: 8, ImgWidth: 8, HiddenDim: 1}, 2)
	assert.Error(t, err)
}

func TestGAN_SyncDiscriminator(t *testing.T) {
	ganGraph := gorgonia.NewGraph()
	batchSize := 2
	gen, err := DCGANGenerator(ganGraph, GeneratorConfig{LatentSize: 4, ImgChannels: 1, ImgHeight: 32, ImgWidth: 32, HiddenDim: 2}, batchSize)
	require.NoError(t, err)
	input := gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, 4), gorgonia.WithName("latent"))
	require.NoError(t, gen.Fwd(input, batchSize))

	dis := DCGANDiscriminator(gorgonia.NewGraph(), DiscriminatorConfig{ImgChannels: 1, HiddenDim: 2})
	gan, err := NewGAN(ganGraph, gen, dis)
	require.NoError(t, err)
	require.NoError(t, gan.Fwd(batchSize))
	assert.Len(t, gan.Learnables(), len(gen.Learnables())+len(dis.Learnables()))
	assert.Len(t, gan.GeneratorLearnables(), len(gen.Learnables()))
	assert.Equal(t, []int{batchSize, 4}, []int(gan.Out().Shape()))

	// Copy is independent until synchronization
	original, err := float64Data(dis.Learnables()[0])
	require.NoError(t, err)
	copied, err := float64Data(gan.Learnables()[len(gen.Learnables())])
	require.NoError(t, err)
	require.Equal(t, original, copied)
	original[0] += 1
	assert.NotEqual(t, original[0], copied[0])

	require.NoError(t, gan.SyncDiscriminator())
	assert.Equal(t, original[0], copied[0])
}
