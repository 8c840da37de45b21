// Package datasets loads cached spectrogram tensors and iterates over them in batches
package datasets

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TechnoDatasetSpectrogram Dataset of equally shaped (C, H, W) spectrograms
type TechnoDatasetSpectrogram struct {
	tensors   []*tensor.Dense
	transform Transform
}

// NewTechnoDatasetSpectrogram Constructor for TechnoDatasetSpectrogram
//
// tensors - samples of the same shape (C, H, W)
// transform - applied on every Get call. Could be nil
//
func NewTechnoDatasetSpectrogram(tensors []*tensor.Dense, transform Transform) (*TechnoDatasetSpectrogram, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Dataset must contain one sample atleast")
	}
	shp := tensors[0].Shape()
	if len(shp) != 3 {
		return nil, fmt.Errorf("Samples must be (C, H, W), but got shape %v", shp)
	}
	if shp.TotalSize() == 0 {
		return nil, fmt.Errorf("Samples must not be empty, but got shape %v", shp)
	}
	for i := range tensors {
		if !tensors[i].Shape().Eq(shp) {
			return nil, fmt.Errorf("Sample #%d has shape %v, but sample #0 has shape %v", i, tensors[i].Shape(), shp)
		}
	}
	return &TechnoDatasetSpectrogram{
		tensors:   tensors,
		transform: transform,
	}, nil
}

// Len Returns number of samples
func (ds *TechnoDatasetSpectrogram) Len() int {
	return len(ds.tensors)
}

// SampleShape Returns shape of single sample (C, H, W)
func (ds *TechnoDatasetSpectrogram) SampleShape() tensor.Shape {
	return ds.tensors[0].Shape().Clone()
}

// Get Returns idx-th sample with transform applied
func (ds *TechnoDatasetSpectrogram) Get(idx int) (*tensor.Dense, error) {
	if idx < 0 || idx >= len(ds.tensors) {
		return nil, fmt.Errorf("Index %d is out of range [0; %d)", idx, len(ds.tensors))
	}
	if ds.transform == nil {
		return ds.tensors[idx], nil
	}
	sample, err := ds.transform.Apply(ds.tensors[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "Can't transform sample #%d", idx)
	}
	return sample, nil
}

// ChannelStats Per-channel mean and standard deviation of raw (non-transformed) samples.
// Values are meant for Normalize. Variance is accumulated around the mean found in the first pass
func (ds *TechnoDatasetSpectrogram) ChannelStats() (mean, std []float64, err error) {
	shp := ds.tensors[0].Shape()
	channels, plane := shp[0], shp[1]*shp[2]
	planes := make([][][]float64, channels)
	for i, t := range ds.tensors {
		data, ok := t.Data().([]float64)
		if !ok {
			return nil, nil, fmt.Errorf("Sample #%d must hold float64 values, but got %v", i, t.Dtype())
		}
		for c := 0; c < channels; c++ {
			planes[c] = append(planes[c], data[c*plane:(c+1)*plane])
		}
	}
	n := float64(len(ds.tensors) * plane)
	mean = make([]float64, channels)
	std = make([]float64, channels)
	for c := 0; c < channels; c++ {
		sum := 0.0
		for _, values := range planes[c] {
			for _, v := range values {
				sum += v
			}
		}
		mean[c] = sum / n
		sqDev := 0.0
		for _, values := range planes[c] {
			for _, v := range values {
				d := v - mean[c]
				sqDev += d * d
			}
		}
		std[c] = math.Sqrt(sqDev / n)
	}
	return mean, std, nil
}
