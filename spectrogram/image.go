package spectrogram

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
)

// Image Renders one channel as grayscale image. Low frequencies are at the bottom
func (s *Spectrogram) Image(channel int) (*image.Gray, error) {
	if channel < 0 || channel >= s.Channels {
		return nil, fmt.Errorf("Channel %d is out of range [0; %d)", channel, s.Channels)
	}
	lo, hi := s.At(channel, 0, 0), s.At(channel, 0, 0)
	for k := 0; k < s.Bins; k++ {
		for t := 0; t < s.Frames; t++ {
			v := s.At(channel, k, t)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	img := image.NewGray(image.Rect(0, 0, s.Frames, s.Bins))
	for k := 0; k < s.Bins; k++ {
		for t := 0; t < s.Frames; t++ {
			val := 0.0
			if span > 0 {
				val = (s.At(channel, k, t) - lo) / span
			}
			img.SetGray(t, s.Bins-k-1, color.Gray{Y: uint8(255 * val)})
		}
	}
	return img, nil
}

// SavePNG Writes one channel of spectrogram into PNG file
func (s *Spectrogram) SavePNG(fname string, channel int) error {
	img, err := s.Image(channel)
	if err != nil {
		return err
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", fname)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "Can't encode PNG")
	}
	return errors.Wrap(f.Close(), "Can't close PNG file")
}
