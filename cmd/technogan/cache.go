package main

import (
	"os"
	"path/filepath"

	"github.com/LdDl/techno-gan/datasets"
	"github.com/LdDl/techno-gan/spectrogram"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func buildCacheCmd() *cobra.Command {
	var (
		input  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "build-cache",
		Short: "Convert WAV/FLAC files into half-precision tensor cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = conf.Data.CachePath
			}
			samples, err := spectrogram.BuildSamples(input, conf.SpectrogramConfig(), log)
			if err != nil {
				return err
			}
			if err = os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return errors.Wrapf(err, "Can't create directory for '%s'", output)
			}
			if err = datasets.WriteCacheFile(output, samples); err != nil {
				return errors.Wrap(err, "Can't write cache")
			}
			log.WithFields(logrus.Fields{
				"samples": len(samples),
				"shape":   samples[0].Shape(),
				"output":  output,
			}).Info("Cache is ready")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Audio file or directory with audio files")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output cache file. Defaults to data.cache_path")
	cmd.MarkFlagRequired("input")
	return cmd
}

func statsCmd() *cobra.Command {
	var cachePath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-channel mean and std of tensor cache (normalization constants)",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if cachePath == "" {
				cachePath = conf.Data.CachePath
			}
			tensors, err := datasets.LoadCache(cachePath)
			if err != nil {
				return err
			}
			ds, err := datasets.NewTechnoDatasetSpectrogram(tensors, nil)
			if err != nil {
				return err
			}
			mean, std, err := ds.ChannelStats()
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"samples": ds.Len(),
				"shape":   ds.SampleShape(),
				"mean":    mean,
				"std":     std,
			}).Info("Channel statistics")
			return nil
		},
	}
	cmd.Flags().StringVar(&cachePath, "cache", "", "Tensor cache. Defaults to data.cache_path")
	return cmd
}
