package main

import (
	"fmt"
	"os"
	"path/filepath"

	techno_gan "github.com/LdDl/techno-gan"
	"github.com/LdDl/techno-gan/spectrogram"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func synthCmd() *cobra.Command {
	var (
		weights   string
		count     int
		outputDir string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate spectrograms with trained Generator and convert them into WAV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("Count must be positive, but got %d", count)
			}
			trainer, err := techno_gan.NewTrainer(conf, log)
			if err != nil {
				return errors.Wrap(err, "Can't prepare generator")
			}
			defer trainer.Close()
			if err = trainer.LoadWeights(weights); err != nil {
				return err
			}
			if err = os.MkdirAll(outputDir, 0755); err != nil {
				return errors.Wrapf(err, "Can't create output directory '%s'", outputDir)
			}
			samples, err := trainer.Generate(count)
			if err != nil {
				return err
			}
			specConf := conf.SpectrogramConfig()
			for i, sample := range samples {
				spec, err := spectrogram.FromDense(sample)
				if err != nil {
					return err
				}
				pngName := filepath.Join(outputDir, fmt.Sprintf("generated_%03d.png", i))
				if err = spec.SavePNG(pngName, 0); err != nil {
					return err
				}
				audio, err := spectrogram.Synthesize(spec, specConf)
				if err == spectrogram.ErrNotInvertible {
					log.WithField("png", pngName).Warn("Spectrogram representation can't be converted into audio, only image is saved")
					continue
				}
				if err != nil {
					return err
				}
				wavName := filepath.Join(outputDir, fmt.Sprintf("generated_%03d.wav", i))
				if err = spectrogram.SaveWav(wavName, audio, specConf.SampleRate); err != nil {
					return err
				}
				log.WithField("wav", wavName).Info("Synthesized")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&weights, "weights", "w", "./output/"+techno_gan.WeightsFileName, "Checkpoint written by train")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of samples")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "./generated", "Output directory")
	return cmd
}
