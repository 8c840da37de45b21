package spectrogram

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
)

const (
	resampleQuality = 4
	streamChunk     = 512
)

var (
	ErrEmptyAudio = errors.New("audio file has no samples")
)

// LoadAudio Loads WAV or FLAC file as mono samples at provided sample rate
func LoadAudio(fname string, sampleRate int) ([]float64, error) {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".wav":
		return LoadWav(fname, sampleRate)
	case ".flac":
		return LoadFlac(fname, sampleRate)
	default:
		return nil, fmt.Errorf("Unsupported audio file '%s': only .wav and .flac are handled", fname)
	}
}

// LoadWav Loads WAV file as mono samples resampled to sampleRate
func LoadWav(fname string, sampleRate int) ([]float64, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open '%s'", fname)
	}
	defer file.Close()
	stream, format, err := wav.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode WAV '%s'", fname)
	}
	defer stream.Close()
	return drainMono(resampled(stream, format.SampleRate, sampleRate))
}

// LoadFlac Loads FLAC file as mono samples resampled to sampleRate
func LoadFlac(fname string, sampleRate int) ([]float64, error) {
	stream, err := flac.ParseFile(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse FLAC '%s'", fname)
	}
	defer stream.Close()
	scale := float64(int64(1) << (stream.Info.BitsPerSample - 1))
	nChannels := int(stream.Info.NChannels)
	var samples []float64
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse FLAC frame of '%s'", fname)
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			sum := 0.0
			for ch := 0; ch < nChannels; ch++ {
				sum += float64(frame.Subframes[ch].Samples[i])
			}
			samples = append(samples, sum/float64(nChannels)/scale)
		}
	}
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}
	if int(stream.Info.SampleRate) == sampleRate {
		return samples, nil
	}
	return drainMono(resampled(monoStreamer(samples), beep.SampleRate(stream.Info.SampleRate), sampleRate))
}

// SaveWav Writes mono samples into 16-bit WAV file
func SaveWav(fname string, samples []float64, sampleRate int) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", fname)
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	if err := wav.Encode(file, monoStreamer(clip(samples)), format); err != nil {
		file.Close()
		return errors.Wrapf(err, "Can't encode WAV '%s'", fname)
	}
	return errors.Wrap(file.Close(), "Can't close WAV file")
}

func resampled(s beep.Streamer, from beep.SampleRate, to int) beep.Streamer {
	if int(from) == to {
		return s
	}
	return beep.Resample(resampleQuality, from, beep.SampleRate(to), s)
}

// drainMono Reads streamer until the end mixing stereo into mono
func drainMono(s beep.Streamer) ([]float64, error) {
	var out []float64
	buf := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyAudio
	}
	return out, nil
}

// monoStreamer Streams mono samples into both channels
func monoStreamer(samples []float64) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := copyMono(buf, samples[pos:])
		pos += n
		return n, true
	})
}

func copyMono(dst [][2]float64, src []float64) int {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}

func clip(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		switch {
		case v > 1:
			out[i] = 1
		case v < -1:
			out[i] = -1
		default:
			out[i] = v
		}
	}
	return out
}
