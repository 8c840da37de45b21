package datasets

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// TechnoMean Per-channel mean of techno spectrogram cache (log-magnitude, instantaneous frequency)
	TechnoMean = []float64{-3.76, 0}
	// TechnoStd Per-channel standard deviation of techno spectrogram cache
	TechnoStd = []float64{10.05, 1}
)

// Transform Is applied to every sample when it's fetched from dataset
type Transform interface {
	Apply(sample *tensor.Dense) (*tensor.Dense, error)
}

// Compose Applies transforms one by one
type Compose []Transform

// Apply Implements Transform
func (c Compose) Apply(sample *tensor.Dense) (*tensor.Dense, error) {
	var err error
	for i, t := range c {
		sample, err = t.Apply(sample)
		if err != nil {
			return nil, errors.Wrapf(err, "Transform #%d failed", i)
		}
	}
	return sample, nil
}

// Normalize Per-channel normalization: x' = (x - Mean[c]) / Std[c]
//
// Sample is expected to be (C, H, W) with C == len(Mean)
//
type Normalize struct {
	Mean []float64
	Std  []float64
}

// NewNormalize Constructor for Normalize
func NewNormalize(mean, std []float64) (*Normalize, error) {
	if len(mean) != len(std) {
		return nil, fmt.Errorf("Normalize needs the same number of means (%d) and stds (%d)", len(mean), len(std))
	}
	if len(mean) == 0 {
		return nil, fmt.Errorf("Normalize needs at least one channel")
	}
	for i := range std {
		if std[i] == 0 {
			return nil, fmt.Errorf("std of channel %d is zero", i)
		}
	}
	return &Normalize{Mean: mean, Std: std}, nil
}

// Apply Implements Transform. Returns new tensor, provided one is left untouched
func (n *Normalize) Apply(sample *tensor.Dense) (*tensor.Dense, error) {
	shp := sample.Shape()
	if len(shp) != 3 {
		return nil, fmt.Errorf("Normalize expects (C, H, W) sample, but got shape %v", shp)
	}
	channels := shp[0]
	if channels != len(n.Mean) {
		return nil, fmt.Errorf("Sample has %d channels, but Normalize is defined for %d", channels, len(n.Mean))
	}
	src, ok := sample.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Normalize expects float64 sample, but got %v", sample.Dtype())
	}
	plane := shp[1] * shp[2]
	dst := make([]float64, len(src))
	for c := 0; c < channels; c++ {
		mean, std := n.Mean[c], n.Std[c]
		for i := c * plane; i < (c+1)*plane; i++ {
			dst[i] = (src[i] - mean) / std
		}
	}
	return tensor.New(tensor.WithShape(shp.Clone()...), tensor.WithBacking(dst)), nil
}

// Denormalize Inverse of Apply. Used to convert generated samples back to spectrogram scale
func (n *Normalize) Denormalize(sample *tensor.Dense) (*tensor.Dense, error) {
	inverse := &Normalize{
		Mean: make([]float64, len(n.Mean)),
		Std:  make([]float64, len(n.Std)),
	}
	// (x - (-m/s)) / (1/s) = x*s + m
	for c := range n.Mean {
		inverse.Mean[c] = -n.Mean[c] / n.Std[c]
		inverse.Std[c] = 1 / n.Std[c]
	}
	return inverse.Apply(sample)
}
