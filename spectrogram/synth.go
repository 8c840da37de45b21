package spectrogram

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/r9y9/gossp/stft"
)

var (
	ErrNotInvertible = errors.New("only magnitude + instantaneous frequency spectrogram could be synthesized")
)

// Synthesize Rebuilds audio from "magif" spectrogram.
//
// Phase is accumulated from instantaneous frequency, full spectrum of every frame
// is restored by conjugate symmetry and handed to inverse STFT.
//
func Synthesize(spec *Spectrogram, conf Config) ([]float64, error) {
	if conf.Representation != RepresentationMagIF || spec.Channels != 2 {
		return nil, ErrNotInvertible
	}
	if spec.Bins != conf.FrameLen/2 {
		return nil, fmt.Errorf("Spectrogram has %d bins, but frame length %d needs %d", spec.Bins, conf.FrameLen, conf.FrameLen/2)
	}
	if spec.Frames == 0 {
		return nil, fmt.Errorf("Spectrogram has no frames")
	}
	phase := make([]float64, spec.Bins)
	frames := make([][]complex128, spec.Frames)
	for t := range frames {
		frame := make([]complex128, conf.FrameLen)
		for k := 0; k < spec.Bins; k++ {
			phase[k] = wrapPhase(phase[k] + spec.At(1, k, t)*math.Pi)
			frame[k] = cmplx.Rect(math.Exp(spec.At(0, k, t)), phase[k])
			if k > 0 {
				frame[conf.FrameLen-k] = cmplx.Conj(frame[k])
			}
		}
		frames[t] = frame
	}
	signal := stft.New(conf.Hop, conf.FrameLen).ISTFT(frames)
	// ISTFT reserves one extra hop after the last frame
	return signal[:conf.FrameLen+(spec.Frames-1)*conf.Hop], nil
}
