package datasets

import (
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// firstValues Returns first value of every sample in batch (samplesRange encodes sample index there)
func firstValues(t *testing.T, loader *DataLoader) [][]float64 {
	t.Helper()
	var batches [][]float64
	for {
		batch, ok, err := loader.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		shp := batch.Shape()
		sampleSize := shp[1] * shp[2] * shp[3]
		data := batch.Data().([]float64)
		values := make([]float64, shp[0])
		for i := range values {
			values[i] = data[i*sampleSize]
		}
		batches = append(batches, values)
	}
	return batches
}

func TestDataLoader_Errors(t *testing.T) {
	ds, err := NewTechnoDatasetSpectrogram(samplesRange(3, 1, 2, 2), nil)
	require.NoError(t, err)

	_, err = NewDataLoader(nil, 2)
	assert.Error(t, err)
	_, err = NewDataLoader(ds, 0)
	assert.Error(t, err)
	_, err = NewDataLoader(ds, 4, WithDropLast(true))
	assert.Error(t, err, "not enough samples for single full batch")
}

func TestDataLoader_KeepLast(t *testing.T) {
	ds, err := NewTechnoDatasetSpectrogram(samplesRange(5, 2, 2, 3), nil)
	require.NoError(t, err)
	loader, err := NewDataLoader(ds, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.NumBatches())
	assert.Equal(t, 2, loader.BatchSize())

	batch, ok, err := loader.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{2, 2, 2, 3}, []int(batch.Shape()))

	loader.Epoch()
	assert.Equal(t, [][]float64{{0, 1}, {2, 3}, {4}}, firstValues(t, loader))
}

func TestDataLoader_DropLast(t *testing.T) {
	ds, err := NewTechnoDatasetSpectrogram(samplesRange(5, 1, 2, 2), nil)
	require.NoError(t, err)
	loader, err := NewDataLoader(ds, 2, WithDropLast(true))
	require.NoError(t, err)
	assert.Equal(t, 2, loader.NumBatches())
	assert.Equal(t, [][]float64{{0, 1}, {2, 3}}, firstValues(t, loader))

	// Iterator stays exhausted until next epoch
	_, ok, err := loader.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDataLoader_Shuffle(t *testing.T) {
	ds, err := NewTechnoDatasetSpectrogram(samplesRange(10, 1, 1, 1), nil)
	require.NoError(t, err)
	loader, err := NewDataLoader(ds, 3, WithShuffle(true), WithSeed(42))
	require.NoError(t, err)

	var seen []float64
	for _, batch := range firstValues(t, loader) {
		seen = append(seen, batch...)
	}
	sort.Float64s(seen)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen, "every sample is visited once per epoch")

	// The same seed gives the same order
	first, err := NewDataLoader(ds, 3, WithShuffle(true), WithSeed(7))
	require.NoError(t, err)
	second, err := NewDataLoader(ds, 3, WithShuffle(true), WithSeed(7))
	require.NoError(t, err)
	batches := firstValues(t, first)
	assert.Len(t, batches, 4)
	assert.Equal(t, batches, firstValues(t, second))
}

func TestTechnoDataLoader(t *testing.T) {
	// Sample i: channel 0 holds i, channel 1 holds i/2. Both are exact in float16
	samples := make([]*tensor.Dense, 5)
	for i := range samples {
		v := float64(i)
		samples[i] = tensor.New(tensor.WithShape(2, 1, 2), tensor.WithBacking([]float64{v, v, v / 2, v / 2}))
	}
	fname := filepath.Join(t.TempDir(), "techno"+CacheExt)
	require.NoError(t, WriteCacheFile(fname, samples))

	loader, err := TechnoDataLoader(2, fname, WithSeed(42))
	require.NoError(t, err)
	assert.Equal(t, 5, loader.Dataset().Len())
	assert.Equal(t, 3, loader.NumBatches())

	identity := []int{0, 1, 2, 3, 4}
	shuffled := false
	for epoch := 0; epoch < 10; epoch++ {
		loader.Epoch()
		sizes := []int{}
		order := []int{}
		for {
			batch, ok, err := loader.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			shp := batch.Shape()
			require.Equal(t, []int{2, 1, 2}, []int(shp[1:]))
			sizes = append(sizes, shp[0])
			data := batch.Data().([]float64)
			for s := 0; s < shp[0]; s++ {
				sample := data[s*4 : (s+1)*4]
				// Channel 1 has mean 0 and std 1, so it still encodes index
				idx := int(math.Round(sample[2] * 2))
				raw := float64(idx)
				assert.InDelta(t, (raw+3.76)/10.05, sample[0], 1e-9)
				assert.InDelta(t, (raw+3.76)/10.05, sample[1], 1e-9)
				assert.InDelta(t, raw/2, sample[3], 1e-12)
				order = append(order, idx)
			}
		}
		assert.Equal(t, []int{2, 2, 1}, sizes, "last partial batch is kept")
		sorted := append([]int(nil), order...)
		sort.Ints(sorted)
		assert.Equal(t, identity, sorted, "every sample is seen once per epoch")
		if !assert.ObjectsAreEqual(identity, order) {
			shuffled = true
		}
	}
	assert.True(t, shuffled, "samples are shuffled between epochs")

	_, err = TechnoDataLoader(2, filepath.Join(t.TempDir(), "missing"+CacheExt))
	assert.Error(t, err)
}

func TestNewTechnoDataLoader_Raw(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "techno"+CacheExt)
	require.NoError(t, WriteCacheFile(fname, samplesRange(3, 1, 2, 2)))

	loader, err := NewTechnoDataLoader(2, fname, nil, WithShuffle(false), WithDropLast(true))
	require.NoError(t, err)
	assert.Equal(t, 1, loader.NumBatches())
	assert.Equal(t, [][]float64{{0, 1}}, firstValues(t, loader))
}
