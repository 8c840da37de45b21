package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	techno_gan "github.com/LdDl/techno-gan"
	"github.com/LdDl/techno-gan/datasets"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func trainCmd() *cobra.Command {
	var (
		epochs    int
		batchSize int
		outputDir string
		resume    string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train DCGAN on tensor cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if epochs > 0 {
				conf.Training.Epochs = epochs
			}
			if batchSize > 0 {
				conf.Training.BatchSize = batchSize
			}
			if outputDir != "" {
				conf.Training.OutputDir = outputDir
			}

			normalize, err := datasets.NewNormalize(conf.Data.Mean, conf.Data.Std)
			if err != nil {
				return err
			}
			// Graphs are defined for fixed batch size, so incomplete batch is never fed
			loader, err := datasets.NewTechnoDataLoader(conf.Training.BatchSize, conf.Data.CachePath, normalize,
				datasets.WithShuffle(conf.Data.Shuffle),
				datasets.WithDropLast(true),
				datasets.WithSeed(conf.Training.Seed),
			)
			if err != nil {
				return err
			}
			trainSet := loader.Dataset()

			trainer, err := techno_gan.NewTrainer(conf, log)
			if err != nil {
				return errors.Wrap(err, "Can't prepare trainer")
			}
			defer trainer.Close()
			if resume != "" {
				if err = trainer.LoadWeights(resume); err != nil {
					return err
				}
				log.WithField("weights", resume).Info("Resumed")
			}

			log.WithFields(logrus.Fields{
				"samples":    trainSet.Len(),
				"shape":      trainSet.SampleShape(),
				"batches":    loader.NumBatches(),
				"epochs":     conf.Training.Epochs,
				"output_dir": conf.Training.OutputDir,
			}).Info("Start training")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			history, err := trainer.Train(ctx, loader)
			if errors.Is(err, context.Canceled) {
				log.WithField("epochs", len(history.Epochs)).Warn("Training interrupted")
				if conf.Training.OutputDir != "" {
					return trainer.SaveWeights(filepath.Join(conf.Training.OutputDir, techno_gan.WeightsFileName))
				}
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Overrides training.epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Overrides training.batch_size")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Overrides training.output_dir")
	cmd.Flags().StringVar(&resume, "resume", "", "Checkpoint to start from")
	return cmd
}
