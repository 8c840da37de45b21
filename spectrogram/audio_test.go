package spectrogram

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWav_RoundTrip(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "tone.wav")
	samples := sine(440, 8000, 4000)
	samples[0] = 3 // clipped on write
	require.NoError(t, SaveWav(fname, samples, 8000))

	loaded, err := LoadAudio(fname, 8000)
	require.NoError(t, err)
	require.Len(t, loaded, len(samples))
	assert.InDelta(t, 1.0, loaded[0], 1e-3)
	for i := 1; i < len(samples); i++ {
		assert.InDelta(t, samples[i], loaded[i], 1e-3)
	}

	resampled, err := LoadWav(fname, 16000)
	require.NoError(t, err)
	assert.InEpsilon(t, 2*len(samples), len(resampled), 0.02)
}

func TestLoadAudio_Unsupported(t *testing.T) {
	_, err := LoadAudio("track.mp3", 22050)
	assert.Error(t, err)
}

func TestBuildSamples(t *testing.T) {
	dir := t.TempDir()
	conf := smallConfig()
	// 2 full samples of 8 frames, tail is dropped
	n := conf.FrameLen + (2*conf.FramesPerSample+3-1)*conf.Hop
	require.NoError(t, SaveWav(filepath.Join(dir, "a.wav"), sine(300, conf.SampleRate, n), conf.SampleRate))
	require.NoError(t, SaveWav(filepath.Join(dir, "b.wav"), sine(600, conf.SampleRate, n), conf.SampleRate))

	samples, err := BuildSamples(dir, conf, logrusDiscard())
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.Equal(t, []int{2, conf.FrameLen / 2, conf.FramesPerSample}, []int(samples[0].Shape()))

	_, err = BuildSamples(t.TempDir(), conf, logrusDiscard())
	assert.Error(t, err, "empty directory")
}

func logrusDiscard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
