// Package spectrogram converts audio into fixed-size spectrogram tensors and back.
//
// Two representations are supported:
//   - "mel": single channel, log-magnitude pooled into mel bands
//   - "magif": two channels over linear frequency bins, log-magnitude and
//     instantaneous frequency (frame-to-frame phase delta scaled to [-1, 1])
//
// Only "magif" could be synthesized back into audio.
package spectrogram

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/r9y9/gossp/stft"
	"gorgonia.org/tensor"
)

const (
	RepresentationMel   = "mel"
	RepresentationMagIF = "magif"

	// logFloor Magnitudes are clipped from below before taking logarithm
	logFloor = 1e-5
)

// Config Parameters of spectrogram
//
// FrameLen - STFT window length (bins = FrameLen/2 for "magif")
// Hop - STFT frame shift
// FramesPerSample - width of single sample produced by Slice
//
type Config struct {
	SampleRate      int
	FrameLen        int
	Hop             int
	Representation  string
	NumMels         int
	MelFmin         float64
	MelFmax         float64
	FramesPerSample int
}

// DefaultConfig 22.05kHz, 256 window, 64 hop, 128 frames per sample, magnitude + instantaneous frequency
func DefaultConfig() Config {
	return Config{
		SampleRate:      22050,
		FrameLen:        256,
		Hop:             64,
		Representation:  RepresentationMagIF,
		NumMels:         128,
		MelFmin:         0,
		MelFmax:         11025,
		FramesPerSample: 128,
	}
}

// Validate Checks parameters
func (conf Config) Validate() error {
	if conf.FrameLen <= 0 || conf.FrameLen%2 != 0 {
		return fmt.Errorf("Frame length must be positive and even, but got %d", conf.FrameLen)
	}
	if conf.Hop <= 0 || conf.Hop > conf.FrameLen {
		return fmt.Errorf("Hop must be in (0; %d], but got %d", conf.FrameLen, conf.Hop)
	}
	if conf.FramesPerSample <= 0 {
		return fmt.Errorf("Frames per sample must be positive, but got %d", conf.FramesPerSample)
	}
	switch conf.Representation {
	case RepresentationMagIF:
	case RepresentationMel:
		if conf.NumMels <= 0 || conf.SampleRate <= 0 {
			return fmt.Errorf("Mel representation needs positive number of mels and sample rate")
		}
		if conf.MelFmax <= conf.MelFmin {
			return fmt.Errorf("Mel max frequency (%f) must be greater than min one (%f)", conf.MelFmax, conf.MelFmin)
		}
	default:
		return fmt.Errorf("Representation '%s' is not handled", conf.Representation)
	}
	return nil
}

// Channels Returns number of channels of representation
func (conf Config) Channels() int {
	if conf.Representation == RepresentationMel {
		return 1
	}
	return 2
}

// Bins Returns number of frequency rows of representation
func (conf Config) Bins() int {
	if conf.Representation == RepresentationMel {
		return conf.NumMels
	}
	return conf.FrameLen / 2
}

// Spectrogram Channel-major (C, Bins, Frames) values
type Spectrogram struct {
	Channels int
	Bins     int
	Frames   int
	Data     []float64
}

// At Returns value of channel c, bin k and frame t
func (s *Spectrogram) At(c, k, t int) float64 {
	return s.Data[(c*s.Bins+k)*s.Frames+t]
}

func (s *Spectrogram) set(c, k, t int, v float64) {
	s.Data[(c*s.Bins+k)*s.Frames+t] = v
}

// Compute Builds spectrogram of mono samples
func Compute(samples []float64, conf Config) (*Spectrogram, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad spectrogram config")
	}
	if len(samples) < conf.FrameLen {
		return nil, fmt.Errorf("Need %d samples atleast, but got %d", conf.FrameLen, len(samples))
	}
	spectrum := stft.New(conf.Hop, conf.FrameLen).STFT(samples)
	if len(spectrum) == 0 {
		return nil, fmt.Errorf("STFT produced no frames")
	}
	switch conf.Representation {
	case RepresentationMel:
		return melSpectrogram(spectrum, conf), nil
	default:
		return magIFSpectrogram(spectrum, conf), nil
	}
}

func magIFSpectrogram(spectrum [][]complex128, conf Config) *Spectrogram {
	bins, frames := conf.FrameLen/2, len(spectrum)
	spec := &Spectrogram{
		Channels: 2,
		Bins:     bins,
		Frames:   frames,
		Data:     make([]float64, 2*bins*frames),
	}
	prevPhase := make([]float64, bins)
	for t := range spectrum {
		for k := 0; k < bins; k++ {
			v := spectrum[t][k]
			spec.set(0, k, t, logMagnitude(cmplx.Abs(v)))
			phase := cmplx.Phase(v)
			spec.set(1, k, t, wrapPhase(phase-prevPhase[k])/math.Pi)
			prevPhase[k] = phase
		}
	}
	return spec
}

func melSpectrogram(spectrum [][]complex128, conf Config) *Spectrogram {
	filters := melFilterbank(conf)
	frames := len(spectrum)
	spec := &Spectrogram{
		Channels: 1,
		Bins:     conf.NumMels,
		Frames:   frames,
		Data:     make([]float64, conf.NumMels*frames),
	}
	for t := range spectrum {
		for m, filter := range filters {
			total := 0.0
			for k, weight := range filter.weights {
				total += weight * cmplx.Abs(spectrum[t][filter.first+k])
			}
			spec.set(0, m, t, logMagnitude(total))
		}
	}
	return spec
}

// Slice Cuts spectrogram into non-overlapping (C, Bins, FramesPerSample) samples. Incomplete tail is dropped
func (s *Spectrogram) Slice(framesPerSample int) []*tensor.Dense {
	if framesPerSample <= 0 {
		return nil
	}
	count := s.Frames / framesPerSample
	samples := make([]*tensor.Dense, 0, count)
	for n := 0; n < count; n++ {
		backing := make([]float64, s.Channels*s.Bins*framesPerSample)
		idx := 0
		for c := 0; c < s.Channels; c++ {
			for k := 0; k < s.Bins; k++ {
				row := (c*s.Bins + k) * s.Frames
				copy(backing[idx:idx+framesPerSample], s.Data[row+n*framesPerSample:row+(n+1)*framesPerSample])
				idx += framesPerSample
			}
		}
		samples = append(samples, tensor.New(tensor.WithShape(s.Channels, s.Bins, framesPerSample), tensor.WithBacking(backing)))
	}
	return samples
}

// FromDense Wraps (C, Bins, Frames) tensor into Spectrogram
func FromDense(t *tensor.Dense) (*Spectrogram, error) {
	shp := t.Shape()
	if len(shp) != 3 {
		return nil, fmt.Errorf("Spectrogram tensor must be (C, Bins, Frames), but got shape %v", shp)
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Spectrogram tensor must hold float64 values, but got %v", t.Dtype())
	}
	return &Spectrogram{
		Channels: shp[0],
		Bins:     shp[1],
		Frames:   shp[2],
		Data:     data,
	}, nil
}

func logMagnitude(v float64) float64 {
	if v < logFloor {
		v = logFloor
	}
	return math.Log(v)
}

// wrapPhase Wraps angle into [-π; π)
func wrapPhase(phase float64) float64 {
	return phase - 2*math.Pi*math.Floor((phase+math.Pi)/(2*math.Pi))
}
