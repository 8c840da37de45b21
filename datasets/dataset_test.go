package datasets

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// samplesRange Returns n samples of shape (c, h, w). Every value of sample i equals i
func samplesRange(n, c, h, w int) []*tensor.Dense {
	samples := make([]*tensor.Dense, n)
	for i := range samples {
		backing := make([]float64, c*h*w)
		for j := range backing {
			backing[j] = float64(i)
		}
		samples[i] = tensor.New(tensor.WithShape(c, h, w), tensor.WithBacking(backing))
	}
	return samples
}

func TestNewTechnoDatasetSpectrogram_Errors(t *testing.T) {
	_, err := NewTechnoDatasetSpectrogram(nil, nil)
	assert.Error(t, err, "empty dataset")

	flat := []*tensor.Dense{tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float64, 4)))}
	_, err = NewTechnoDatasetSpectrogram(flat, nil)
	assert.Error(t, err, "2D samples")

	mixed := append(samplesRange(2, 1, 2, 2), samplesRange(1, 1, 2, 3)...)
	_, err = NewTechnoDatasetSpectrogram(mixed, nil)
	assert.Error(t, err, "different shapes")
}

func TestTechnoDatasetSpectrogram_Get(t *testing.T) {
	normalize, err := NewNormalize([]float64{1}, []float64{2})
	require.NoError(t, err)
	ds, err := NewTechnoDatasetSpectrogram(samplesRange(3, 1, 2, 2), normalize)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []int{1, 2, 2}, []int(ds.SampleShape()))

	sample, err := ds.Get(2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5, 0.5}, sample.Data().([]float64), 1e-12)

	_, err = ds.Get(3)
	assert.Error(t, err)
	_, err = ds.Get(-1)
	assert.Error(t, err)
}

func TestTechnoDatasetSpectrogram_ChannelStats(t *testing.T) {
	// Channel 0 holds {0, 2}, channel 1 holds {5, 5}
	sample := tensor.New(tensor.WithShape(2, 1, 2), tensor.WithBacking([]float64{0, 2, 5, 5}))
	ds, err := NewTechnoDatasetSpectrogram([]*tensor.Dense{sample}, nil)
	require.NoError(t, err)
	mean, std, err := ds.ChannelStats()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 5}, mean, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0}, std, 1e-12)

	// Samples 0..3, each one is constant
	ds, err = NewTechnoDatasetSpectrogram(samplesRange(4, 1, 3, 3), nil)
	require.NoError(t, err)
	mean, std, err = ds.ChannelStats()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), std[0], 1e-12)
}

func TestTechnoDatasetSpectrogram_ChannelStatsLargeOffset(t *testing.T) {
	// E[x^2]-E[x]^2 on values near 1e9 loses every significant digit of variance
	samples := samplesRange(4, 1, 2, 2)
	for _, sample := range samples {
		data := sample.Data().([]float64)
		for j := range data {
			data[j] += 1e9
		}
	}
	ds, err := NewTechnoDatasetSpectrogram(samples, nil)
	require.NoError(t, err)
	mean, std, err := ds.ChannelStats()
	require.NoError(t, err)
	assert.InDelta(t, 1e9+1.5, mean[0], 1e-6)
	assert.InDelta(t, math.Sqrt(1.25), std[0], 1e-9)
}
