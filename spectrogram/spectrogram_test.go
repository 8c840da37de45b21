package spectrogram

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func sine(freq float64, sampleRate, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return samples
}

func smallConfig() Config {
	conf := DefaultConfig()
	conf.SampleRate = 8000
	conf.FrameLen = 64
	conf.Hop = 16
	conf.NumMels = 16
	conf.MelFmax = 4000
	conf.FramesPerSample = 8
	return conf
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 2, DefaultConfig().Channels())
	assert.Equal(t, 128, DefaultConfig().Bins())

	conf := DefaultConfig()
	conf.FrameLen = 255
	assert.Error(t, conf.Validate(), "odd frame length")

	conf = DefaultConfig()
	conf.Hop = 0
	assert.Error(t, conf.Validate(), "zero hop")

	conf = DefaultConfig()
	conf.Representation = "cqt"
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.Representation = RepresentationMel
	conf.MelFmax = conf.MelFmin
	assert.Error(t, conf.Validate())
}

func TestCompute_MagIF(t *testing.T) {
	conf := smallConfig()
	frames := 20
	samples := sine(1000, conf.SampleRate, conf.FrameLen+(frames-1)*conf.Hop)
	spec, err := Compute(samples, conf)
	require.NoError(t, err)
	assert.Equal(t, 2, spec.Channels)
	assert.Equal(t, conf.FrameLen/2, spec.Bins)
	assert.Equal(t, frames, spec.Frames)
	assert.Len(t, spec.Data, 2*spec.Bins*spec.Frames)

	// 1 kHz at 8 kHz with 64-point frame falls into bin 8
	peak := 0
	for k := 1; k < spec.Bins; k++ {
		if spec.At(0, k, frames/2) > spec.At(0, peak, frames/2) {
			peak = k
		}
	}
	assert.Equal(t, 8, peak)

	for k := 0; k < spec.Bins; k++ {
		for f := 0; f < spec.Frames; f++ {
			assert.True(t, math.Abs(spec.At(1, k, f)) <= 1+1e-9, "instantaneous frequency is in [-1; 1]")
			assert.True(t, spec.At(0, k, f) >= math.Log(logFloor))
		}
	}
}

func TestCompute_Mel(t *testing.T) {
	conf := smallConfig()
	conf.Representation = RepresentationMel
	spec, err := Compute(sine(440, conf.SampleRate, 1024), conf)
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Channels)
	assert.Equal(t, conf.NumMels, spec.Bins)

	_, err = Synthesize(spec, conf)
	assert.Equal(t, ErrNotInvertible, err)
}

func TestCompute_TooShort(t *testing.T) {
	conf := smallConfig()
	_, err := Compute(make([]float64, conf.FrameLen-1), conf)
	assert.Error(t, err)
}

func TestSlice(t *testing.T) {
	spec := &Spectrogram{Channels: 2, Bins: 2, Frames: 5, Data: make([]float64, 20)}
	for i := range spec.Data {
		spec.Data[i] = float64(i)
	}
	samples := spec.Slice(2)
	require.Len(t, samples, 2, "incomplete tail is dropped")
	assert.Equal(t, []int{2, 2, 2}, []int(samples[0].Shape()))
	// rows: c0k0 = 0..4, c0k1 = 5..9, c1k0 = 10..14, c1k1 = 15..19
	assert.Equal(t, []float64{0, 1, 5, 6, 10, 11, 15, 16}, samples[0].Data().([]float64))
	assert.Equal(t, []float64{2, 3, 7, 8, 12, 13, 17, 18}, samples[1].Data().([]float64))
	assert.Nil(t, spec.Slice(0))

	back, err := FromDense(samples[1])
	require.NoError(t, err)
	assert.Equal(t, 2, back.Frames)
	assert.Equal(t, 13.0, back.At(1, 0, 1))

	_, err = FromDense(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float64, 4))))
	assert.Error(t, err)
}

func TestWrapPhase(t *testing.T) {
	cases := []struct {
		in, out float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{math.Pi, -math.Pi},
		{5 * math.Pi / 2, math.Pi / 2},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.out, wrapPhase(tc.in), 1e-9, "wrapPhase(%f)", tc.in)
	}
}

func TestMelFilterbank(t *testing.T) {
	conf := smallConfig()
	conf.Representation = RepresentationMel
	filters := melFilterbank(conf)
	require.Len(t, filters, conf.NumMels)
	prevFirst := 0
	for m, filter := range filters {
		assert.NotEmpty(t, filter.weights, "filter #%d", m)
		assert.True(t, filter.first >= prevFirst, "filters are ordered by frequency")
		assert.True(t, filter.first+len(filter.weights) <= conf.FrameLen/2+1)
		nonZero := false
		for _, w := range filter.weights {
			assert.True(t, w >= 0 && w <= 1)
			if w > 0 {
				nonZero = true
			}
		}
		assert.True(t, nonZero, "filter #%d has no weights", m)
		prevFirst = filter.first
	}
	assert.InDelta(t, 1000.0, melToHz(hzToMel(1000)), 1e-9)
}

func TestSynthesize(t *testing.T) {
	conf := smallConfig()
	frames := 30
	samples := sine(500, conf.SampleRate, conf.FrameLen+(frames-1)*conf.Hop)
	spec, err := Compute(samples, conf)
	require.NoError(t, err)

	audio, err := Synthesize(spec, conf)
	require.NoError(t, err)
	assert.Len(t, audio, conf.FrameLen+(spec.Frames-1)*conf.Hop)
	energy := 0.0
	for _, v := range audio {
		assert.False(t, math.IsNaN(v))
		energy += v * v
	}
	assert.True(t, energy > 0)
	// Away from the edges inverse STFT restores analysed signal
	for i := conf.FrameLen; i < len(audio)-conf.FrameLen; i++ {
		assert.InDelta(t, samples[i], audio[i], 1e-3, "sample #%d", i)
	}

	spec.Bins = 10
	_, err = Synthesize(spec, conf)
	assert.Error(t, err, "bins mismatch")
}

func TestSavePNG(t *testing.T) {
	spec := &Spectrogram{Channels: 1, Bins: 3, Frames: 2, Data: []float64{0, 1, 2, 3, 4, 5}}
	img, err := spec.Image(0)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	// Highest bin at the top row, lowest at the bottom
	assert.Equal(t, uint8(255), img.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(0), img.GrayAt(0, 2).Y)

	_, err = spec.Image(1)
	assert.Error(t, err)
	require.NoError(t, spec.SavePNG(filepath.Join(t.TempDir(), "spec.png"), 0))
}
