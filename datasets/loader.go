package datasets

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DataLoader Iterates over dataset in batches of (N, C, H, W)
//
// Usage:
//
//	loader.Epoch()
//	for {
//		batch, ok, err := loader.Next()
//		if err != nil { ... }
//		if !ok { break }
//	}
//
type DataLoader struct {
	dataset   *TechnoDatasetSpectrogram
	batchSize int
	shuffle   bool
	dropLast  bool
	rng       *rand.Rand

	order  []int
	cursor int
}

// LoaderOption Functional option for DataLoader
type LoaderOption func(*DataLoader)

// WithShuffle Enables reshuffling of samples on every epoch
func WithShuffle(shuffle bool) LoaderOption {
	return func(dl *DataLoader) {
		dl.shuffle = shuffle
	}
}

// WithDropLast Skips last incomplete batch
func WithDropLast(dropLast bool) LoaderOption {
	return func(dl *DataLoader) {
		dl.dropLast = dropLast
	}
}

// WithSeed Sets seed of shuffling
func WithSeed(seed int64) LoaderOption {
	return func(dl *DataLoader) {
		dl.rng = rand.New(rand.NewSource(seed))
	}
}

// NewDataLoader Constructor for DataLoader. By default there is no shuffling and last incomplete batch is kept
func NewDataLoader(dataset *TechnoDatasetSpectrogram, batchSize int, opts ...LoaderOption) (*DataLoader, error) {
	if dataset == nil {
		return nil, fmt.Errorf("Dataset is nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", batchSize)
	}
	dl := &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
	}
	for _, opt := range opts {
		opt(dl)
	}
	if dl.rng == nil {
		dl.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if dl.dropLast && dataset.Len() < batchSize {
		return nil, fmt.Errorf("Dataset has %d samples: not enough for single batch of %d with dropped last batch", dataset.Len(), batchSize)
	}
	dl.Epoch()
	return dl, nil
}

// TechnoDataLoader Loads tensor cache from dataPath and wraps it into shuffled DataLoader with techno normalization
func TechnoDataLoader(batchSize int, dataPath string, opts ...LoaderOption) (*DataLoader, error) {
	normalize, err := NewNormalize(TechnoMean, TechnoStd)
	if err != nil {
		return nil, err
	}
	return NewTechnoDataLoader(batchSize, dataPath, normalize, opts...)
}

// NewTechnoDataLoader Same as TechnoDataLoader, but with custom normalization (nil means raw samples).
// Options are applied after default shuffling, so WithShuffle(false) disables it
func NewTechnoDataLoader(batchSize int, dataPath string, normalize *Normalize, opts ...LoaderOption) (*DataLoader, error) {
	tensors, err := LoadCache(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "Can't load techno tensors")
	}
	var transform Transform
	if normalize != nil {
		transform = normalize
	}
	trainSet, err := NewTechnoDatasetSpectrogram(tensors, transform)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare techno dataset")
	}
	return NewDataLoader(trainSet, batchSize, append([]LoaderOption{WithShuffle(true)}, opts...)...)
}

// Dataset Returns underlying dataset
func (dl *DataLoader) Dataset() *TechnoDatasetSpectrogram {
	return dl.dataset
}

// BatchSize Returns configured batch size
func (dl *DataLoader) BatchSize() int {
	return dl.batchSize
}

// NumBatches Returns number of batches in single epoch
func (dl *DataLoader) NumBatches() int {
	n := dl.dataset.Len() / dl.batchSize
	if !dl.dropLast && dl.dataset.Len()%dl.batchSize != 0 {
		n++
	}
	return n
}

// Epoch Rewinds iterator. Order of samples is reshuffled if shuffling is enabled
func (dl *DataLoader) Epoch() {
	if dl.order == nil {
		dl.order = make([]int, dl.dataset.Len())
	}
	for i := range dl.order {
		dl.order[i] = i
	}
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.order), func(i, j int) {
			dl.order[i], dl.order[j] = dl.order[j], dl.order[i]
		})
	}
	dl.cursor = 0
}

// Next Returns next batch. ok is false when epoch is over
func (dl *DataLoader) Next() (batch *tensor.Dense, ok bool, err error) {
	start := dl.cursor
	if start >= len(dl.order) {
		return nil, false, nil
	}
	end := start + dl.batchSize
	if end > len(dl.order) {
		if dl.dropLast {
			dl.cursor = len(dl.order)
			return nil, false, nil
		}
		end = len(dl.order)
	}
	dl.cursor = end
	batch, err = dl.stack(dl.order[start:end])
	if err != nil {
		return nil, false, err
	}
	return batch, true, nil
}

// stack Builds (N, C, H, W) tensor from samples with provided indices
func (dl *DataLoader) stack(indices []int) (*tensor.Dense, error) {
	sampleShape := dl.dataset.SampleShape()
	sampleSize := sampleShape.TotalSize()
	backing := make([]float64, 0, len(indices)*sampleSize)
	for _, idx := range indices {
		sample, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, err
		}
		data, ok := sample.Data().([]float64)
		if !ok {
			return nil, fmt.Errorf("Sample #%d must hold float64 values, but got %v", idx, sample.Dtype())
		}
		backing = append(backing, data...)
	}
	shp := append(tensor.Shape{len(indices)}, sampleShape...)
	return tensor.New(tensor.WithShape(shp...), tensor.WithBacking(backing)), nil
}
