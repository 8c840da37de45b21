package spectrogram

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/tensor"
)

// BuildSamples Walks directory (or single file) and converts every WAV/FLAC file into spectrogram samples
func BuildSamples(root string, conf Config, log logrus.FieldLogger) ([]*tensor.Dense, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad spectrogram config")
	}
	files, err := audioFiles(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("No .wav or .flac files found in '%s'", root)
	}
	var samples []*tensor.Dense
	for _, fname := range files {
		entry := log.WithField("file", fname)
		audio, err := LoadAudio(fname, conf.SampleRate)
		if err != nil {
			entry.WithError(err).Warn("Skip audio file")
			continue
		}
		spec, err := Compute(audio, conf)
		if err != nil {
			entry.WithError(err).Warn("Skip audio file")
			continue
		}
		sliced := spec.Slice(conf.FramesPerSample)
		entry.WithFields(logrus.Fields{
			"seconds": float64(len(audio)) / float64(conf.SampleRate),
			"frames":  spec.Frames,
			"samples": len(sliced),
		}).Info("Converted")
		samples = append(samples, sliced...)
	}
	if len(samples) == 0 {
		return nil, errors.Errorf("No samples produced from '%s': audio files are too short or broken", root)
	}
	return samples, nil
}

func audioFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't stat '%s'", root)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".wav", ".flac":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Can't walk '%s'", root)
	}
	sort.Strings(files)
	return files, nil
}
