package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	conf := Default()
	require.NoError(t, conf.Validate())
	c, h, w := conf.SampleShape()
	assert.Equal(t, []int{2, 128, 128}, []int{c, h, w})
	assert.Equal(t, 2, conf.SpectrogramConfig().Channels())
	assert.Equal(t, h, conf.SpectrogramConfig().Bins())
}

func TestLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "conf.yaml")
	content := `
spectrogram:
  representation: mel
  num_mels: 64
  frames_per_sample: 64
data:
  cache_path: ./cache.pt
  mean: [-4.0]
  std: [9.5]
discriminator:
  img_channels: 1
training:
  batch_size: 4
  solver: rmsprop
`
	require.NoError(t, os.WriteFile(fname, []byte(content), 0644))
	conf, err := Load(fname)
	require.NoError(t, err)
	c, h, w := conf.SampleShape()
	assert.Equal(t, []int{1, 64, 64}, []int{c, h, w})
	assert.Equal(t, "./cache.pt", conf.Data.CachePath)
	assert.Equal(t, 4, conf.Training.BatchSize)
	assert.Equal(t, "rmsprop", conf.Training.Solver)
	// Untouched fields keep defaults
	assert.Equal(t, 22050, conf.Spectrogram.SampleRate)
	assert.Equal(t, 100, conf.Generator.LatentSize)

	saved := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, conf.Save(saved))
	reloaded, err := Load(saved)
	require.NoError(t, err)
	assert.Equal(t, conf, reloaded)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	fname := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(fname, []byte("spectrogram:\n  representation: mel\n"), 0644))
	_, err = Load(fname)
	assert.Error(t, err, "2-channel normalization for 1-channel representation")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"Representation", func(c *Config) { c.Spectrogram.Representation = "cqt" }},
		{"StdMismatch", func(c *Config) { c.Data.Std = []float64{1} }},
		{"ZeroStd", func(c *Config) { c.Data.Std = []float64{1, 0} }},
		{"Channels", func(c *Config) { c.Discriminator.ImgChannels = 1 }},
		{"Divisibility", func(c *Config) { c.Spectrogram.FramesPerSample = 126 }},
		{"BatchSize", func(c *Config) { c.Training.BatchSize = 0 }},
		{"Solver", func(c *Config) { c.Training.Solver = "sgd" }},
		{"LearnRate", func(c *Config) { c.Training.LearnRateG = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := Default()
			tc.modify(&conf)
			assert.Error(t, conf.Validate())
		})
	}
}
