// Package config holds YAML configuration of cache building and GAN training
package config

import (
	"fmt"
	"os"

	"github.com/LdDl/techno-gan/spectrogram"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config Root of configuration file
type Config struct {
	Spectrogram   Spectrogram   `yaml:"spectrogram"`
	Data          Data          `yaml:"data"`
	Discriminator Discriminator `yaml:"discriminator"`
	Generator     Generator     `yaml:"generator"`
	Training      Training      `yaml:"training"`
}

// Spectrogram Parameters of audio to tensor conversion
type Spectrogram struct {
	SampleRate      int     `yaml:"sample_rate"`
	FrameLen        int     `yaml:"frame_len"`
	Hop             int     `yaml:"hop"`
	Representation  string  `yaml:"representation"`
	NumMels         int     `yaml:"num_mels"`
	MelFmin         float64 `yaml:"mel_fmin"`
	MelFmax         float64 `yaml:"mel_fmax"`
	FramesPerSample int     `yaml:"frames_per_sample"`
}

// Data Location of tensor cache and normalization applied on loading
type Data struct {
	CachePath string    `yaml:"cache_path"`
	Mean      []float64 `yaml:"mean"`
	Std       []float64 `yaml:"std"`
	Shuffle   bool      `yaml:"shuffle"`
}

// Discriminator DCGAN discriminator hyperparameters
type Discriminator struct {
	ImgChannels int     `yaml:"img_channels"`
	HiddenDim   int     `yaml:"hidden_dim"`
	KernelSize  int     `yaml:"kernel_size"`
	Stride      int     `yaml:"stride"`
	LeakySlope  float64 `yaml:"leaky_slope"`
}

// Generator generator hyperparameters
type Generator struct {
	// Zero means generator default
	LatentSize    int    `yaml:"latent_size"`
	HiddenDim     int    `yaml:"hidden_dim"`
	OutActivation string `yaml:"out_activation"`
}

// Training Parameters of training loop
type Training struct {
	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	Loss         string  `yaml:"loss"`
	Solver       string  `yaml:"solver"`
	LearnRateD   float64 `yaml:"learn_rate_d"`
	LearnRateG   float64 `yaml:"learn_rate_g"`
	Beta1        float64 `yaml:"beta1"`
	Beta2        float64 `yaml:"beta2"`
	Seed         int64   `yaml:"seed"`
	LogEvery     int     `yaml:"log_every"`
	SampleEvery  int     `yaml:"sample_every"`
	OutputDir    string  `yaml:"output_dir"`
	SaveWeights  bool    `yaml:"save_weights"`
	PlotFileName string  `yaml:"plot_file_name"`
}

// Default Returns configuration for 2-channel (log-magnitude + instantaneous frequency) 128x128 spectrograms
func Default() Config {
	return Config{
		Spectrogram: Spectrogram{
			SampleRate:      22050,
			FrameLen:        256,
			Hop:             64,
			Representation:  "magif",
			NumMels:         128,
			MelFmin:         0,
			MelFmax:         11025,
			FramesPerSample: 128,
		},
		Data: Data{
			CachePath: "./data/techno.f16",
			Mean:      []float64{-3.76, 0},
			Std:       []float64{10.05, 1},
			Shuffle:   true,
		},
		Discriminator: Discriminator{
			ImgChannels: 2,
			HiddenDim:   16,
			KernelSize:  4,
			Stride:      2,
			LeakySlope:  0.2,
		},
		Generator: Generator{
			LatentSize:    100,
			HiddenDim:     16,
			OutActivation: "tanh",
		},
		Training: Training{
			BatchSize:    16,
			Epochs:       10,
			Loss:         "bce_logits",
			Solver:       "adam",
			LearnRateD:   0.0002,
			LearnRateG:   0.0002,
			Beta1:        0.5,
			Beta2:        0.999,
			Seed:         1337,
			LogEvery:     10,
			SampleEvery:  1,
			OutputDir:    "./output",
			SaveWeights:  true,
			PlotFileName: "losses.png",
		},
	}
}

// Load Reads YAML file. Fields which are absent in file keep default values
func Load(fname string) (Config, error) {
	conf := Default()
	data, err := os.ReadFile(fname)
	if err != nil {
		return conf, errors.Wrapf(err, "Can't read config file '%s'", fname)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, errors.Wrapf(err, "Can't parse config file '%s'", fname)
	}
	if err := conf.Validate(); err != nil {
		return conf, errors.Wrapf(err, "Bad config file '%s'", fname)
	}
	return conf, nil
}

// Save Writes configuration as YAML
func (conf Config) Save(fname string) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return errors.Wrap(err, "Can't encode config")
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return errors.Wrapf(err, "Can't write config file '%s'", fname)
	}
	return nil
}

// Channels Returns number of channels produced by configured spectrogram representation
func (conf Config) Channels() int {
	if conf.Spectrogram.Representation == "mel" {
		return 1
	}
	return 2
}

// Validate Checks consistency between sections
func (conf Config) Validate() error {
	sp := conf.Spectrogram
	if sp.Representation != "mel" && sp.Representation != "magif" {
		return fmt.Errorf("spectrogram.representation must be 'mel' or 'magif', but got '%s'", sp.Representation)
	}
	if sp.FrameLen <= 0 || sp.Hop <= 0 || sp.FramesPerSample <= 0 || sp.SampleRate <= 0 {
		return fmt.Errorf("spectrogram sizes must be positive")
	}
	if len(conf.Data.Mean) != len(conf.Data.Std) {
		return fmt.Errorf("data.mean has %d values, but data.std has %d", len(conf.Data.Mean), len(conf.Data.Std))
	}
	for i, s := range conf.Data.Std {
		if s == 0 {
			return fmt.Errorf("data.std[%d] is zero", i)
		}
	}
	if conf.Discriminator.ImgChannels != conf.Channels() {
		return fmt.Errorf("discriminator.img_channels is %d, but '%s' spectrogram has %d channels", conf.Discriminator.ImgChannels, sp.Representation, conf.Channels())
	}
	if len(conf.Data.Mean) != conf.Channels() {
		return fmt.Errorf("data.mean has %d values, but spectrogram has %d channels", len(conf.Data.Mean), conf.Channels())
	}
	if _, h, w := conf.SampleShape(); h%4 != 0 || w%4 != 0 {
		return fmt.Errorf("sample size %dx%d must be divisible by 4", h, w)
	}
	tr := conf.Training
	if tr.BatchSize <= 0 || tr.Epochs <= 0 {
		return fmt.Errorf("training.batch_size (%d) and training.epochs (%d) must be positive", tr.BatchSize, tr.Epochs)
	}
	if tr.Solver != "adam" && tr.Solver != "rmsprop" {
		return fmt.Errorf("training.solver must be 'adam' or 'rmsprop', but got '%s'", tr.Solver)
	}
	if tr.LearnRateD <= 0 || tr.LearnRateG <= 0 {
		return fmt.Errorf("learning rates must be positive")
	}
	return nil
}

// SampleShape Returns (channels, height, width) of single spectrogram sample
func (conf Config) SampleShape() (int, int, int) {
	height := conf.Spectrogram.FrameLen / 2
	if conf.Spectrogram.Representation == "mel" {
		height = conf.Spectrogram.NumMels
	}
	return conf.Channels(), height, conf.Spectrogram.FramesPerSample
}

// SpectrogramConfig Converts spectrogram section into parameters of spectrogram package
func (conf Config) SpectrogramConfig() spectrogram.Config {
	sp := conf.Spectrogram
	return spectrogram.Config{
		SampleRate:      sp.SampleRate,
		FrameLen:        sp.FrameLen,
		Hop:             sp.Hop,
		Representation:  sp.Representation,
		NumMels:         sp.NumMels,
		MelFmin:         sp.MelFmin,
		MelFmax:         sp.MelFmax,
		FramesPerSample: sp.FramesPerSample,
	}
}
