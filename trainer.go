package techno_gan

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/LdDl/techno-gan/config"
	"github.com/LdDl/techno-gan/datasets"
	"github.com/LdDl/techno-gan/spectrogram"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// EpochLoss Mean losses of single epoch
type EpochLoss struct {
	Epoch             int
	Batches           int
	DiscriminatorLoss float64
	GeneratorLoss     float64
	Took              time.Duration
}

// History Losses of all finished epochs
type History struct {
	Epochs []EpochLoss
}

// Trainer Holds both evaluation graphs (GAN and Discriminator in training mode), their tape machines and solvers
type Trainer struct {
	conf config.Config
	log  logrus.FieldLogger
	rng  *rand.Rand

	batchSize   int
	latentSize  int
	patches     int
	sampleShape tensor.Shape

	generator     *GeneratorNet
	discriminator *DiscriminatorNet
	gan           *GAN
	normalize     *datasets.Normalize

	inputGenerator           *gorgonia.Node
	inputDiscriminatorTrain  *gorgonia.Node
	targetDiscriminatorGAN   *gorgonia.Node
	targetDiscriminatorTrain *gorgonia.Node

	generatedSamples          gorgonia.Value
	costValGAN                gorgonia.Value
	costValDiscriminatorTrain gorgonia.Value

	tmGenerator gorgonia.VM
	tmGAN       gorgonia.VM
	tmDisTrain  gorgonia.VM

	solverGAN                gorgonia.Solver
	solverDiscriminatorTrain gorgonia.Solver

	ganLabels        *tensor.Dense
	allSamplesLabels tensor.Tensor
}

// NewTrainer Defines Generator, Discriminator and GAN for provided configuration
func NewTrainer(conf config.Config, log logrus.FieldLogger) (*Trainer, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad config")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	lossFn, err := LossByName(conf.Training.Loss)
	if err != nil {
		return nil, err
	}
	outActivation, err := ActivationByName(conf.Generator.OutActivation)
	if err != nil {
		return nil, err
	}
	normalize, err := datasets.NewNormalize(conf.Data.Mean, conf.Data.Std)
	if err != nil {
		return nil, errors.Wrap(err, "Bad normalization")
	}
	channels, height, width := conf.SampleShape()
	batchSize := conf.Training.BatchSize
	disConf := DiscriminatorConfig{
		ImgChannels: conf.Discriminator.ImgChannels,
		HiddenDim:   conf.Discriminator.HiddenDim,
		KernelSize:  conf.Discriminator.KernelSize,
		Stride:      conf.Discriminator.Stride,
		LeakySlope:  conf.Discriminator.LeakySlope,
	}
	patches, err := disConf.OutputSize(height, width)
	if err != nil {
		return nil, err
	}

	genConf := GeneratorConfig{
		LatentSize:    conf.Generator.LatentSize,
		ImgChannels:   channels,
		ImgHeight:     height,
		ImgWidth:      width,
		HiddenDim:     conf.Generator.HiddenDim,
		OutActivation: outActivation,
	}.withDefaults()

	t := &Trainer{
		conf:        conf,
		log:         log,
		rng:         rand.New(rand.NewSource(conf.Training.Seed)),
		batchSize:   batchSize,
		latentSize:  genConf.LatentSize,
		patches:     patches,
		sampleShape: tensor.Shape{channels, height, width},
		normalize:   normalize,
	}

	// Define graph for GAN feedforward and Generator training
	ganGraph := gorgonia.NewGraph()
	// Define graph for Discriminator training
	trainDiscriminatorGraph := gorgonia.NewGraph()

	// Define Generator on GAN's evaluation graph
	t.generator, err = DCGANGenerator(ganGraph, genConf, batchSize)
	if err != nil {
		return nil, err
	}
	t.inputGenerator = gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, t.latentSize), gorgonia.WithName("generator_input"))
	if err = t.generator.Fwd(t.inputGenerator, batchSize); err != nil {
		return nil, err
	}

	// Define Discriminator on its own evaluation graph. It sees real and fake samples at once
	t.discriminator = DCGANDiscriminator(trainDiscriminatorGraph, disConf)
	t.inputDiscriminatorTrain = gorgonia.NewTensor(trainDiscriminatorGraph, gorgonia.Float64, 4, gorgonia.WithShape(2*batchSize, channels, height, width), gorgonia.WithName("discriminator_train_input"))
	if err = t.discriminator.Fwd(t.inputDiscriminatorTrain, 2*batchSize); err != nil {
		return nil, err
	}

	// Define GAN on the same evaluation graph as Generator has been defined
	t.gan, err = NewGAN(ganGraph, t.generator, t.discriminator)
	if err != nil {
		return nil, err
	}
	if err = t.gan.Fwd(batchSize); err != nil {
		return nil, err
	}

	gorgonia.Read(t.gan.GeneratorOut(), &t.generatedSamples)
	// Machine for Generator's feedforward only: it must be compiled before cost nodes are added
	t.tmGenerator = gorgonia.NewTapeMachine(ganGraph)

	t.targetDiscriminatorGAN = gorgonia.NewMatrix(ganGraph, gorgonia.Float64, gorgonia.WithShape(batchSize, patches), gorgonia.WithName("gan_discriminator_target"))
	cost, err := lossFn(t.gan.Out(), t.targetDiscriminatorGAN)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define GAN cost")
	}
	gorgonia.WithName("gan_discriminator_loss")(cost)
	if _, err = gorgonia.Grad(cost, t.gan.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "Can't define GAN gradients")
	}

	t.targetDiscriminatorTrain = gorgonia.NewMatrix(trainDiscriminatorGraph, gorgonia.Float64, gorgonia.WithShape(2*batchSize, patches), gorgonia.WithName("discriminator_target"))
	costDiscriminatorTrain, err := lossFn(t.discriminator.Out(), t.targetDiscriminatorTrain)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define Discriminator cost")
	}
	gorgonia.WithName("discriminator_loss")(costDiscriminatorTrain)
	if _, err = gorgonia.Grad(costDiscriminatorTrain, t.discriminator.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "Can't define Discriminator gradients")
	}

	gorgonia.Read(cost, &t.costValGAN)
	gorgonia.Read(costDiscriminatorTrain, &t.costValDiscriminatorTrain)

	t.tmGAN = gorgonia.NewTapeMachine(ganGraph, gorgonia.BindDualValues(t.gan.Learnables()...))
	t.tmDisTrain = gorgonia.NewTapeMachine(trainDiscriminatorGraph, gorgonia.BindDualValues(t.discriminator.Learnables()...))
	t.solverGAN = newSolver(conf.Training, conf.Training.LearnRateG)
	t.solverDiscriminatorTrain = newSolver(conf.Training, conf.Training.LearnRateD)

	// Real samples are labeled as ones, generated ones as zeros. Generator wants Discriminator to say "ones"
	t.ganLabels = LabelsDense(batchSize, patches, 1)
	t.allSamplesLabels, err = tensor.Concat(0, LabelsDense(batchSize, patches, 1), LabelsDense(batchSize, patches, 0))
	if err != nil {
		return nil, errors.Wrap(err, "Can't concat labels")
	}
	return t, nil
}

func newSolver(conf config.Training, learnRate float64) gorgonia.Solver {
	if conf.Solver == "rmsprop" {
		return gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(learnRate))
	}
	beta1, beta2 := conf.Beta1, conf.Beta2
	if beta1 <= 0 {
		beta1 = 0.5
	}
	if beta2 <= 0 {
		beta2 = 0.999
	}
	return gorgonia.NewAdamSolver(gorgonia.WithLearnRate(learnRate), gorgonia.WithBeta1(beta1), gorgonia.WithBeta2(beta2))
}

// Close Releases tape machines
func (t *Trainer) Close() error {
	for _, vm := range []gorgonia.VM{t.tmGenerator, t.tmGAN, t.tmDisTrain} {
		if vm != nil {
			vm.Close()
		}
	}
	return nil
}

// Generator Returns generator network
func (t *Trainer) Generator() *GeneratorNet {
	return t.generator
}

// Discriminator Returns discriminator network
func (t *Trainer) Discriminator() *DiscriminatorNet {
	return t.discriminator
}

// Step Does single training step: Discriminator step on real+fake samples, then Generator step.
//
// real - batch of normalized real spectrograms (batchSize, C, H, W)
//
func (t *Trainer) Step(real *tensor.Dense) (dLoss, gLoss float64, err error) {
	expected := append(tensor.Shape{t.batchSize}, t.sampleShape...)
	if !real.Shape().Eq(expected) {
		return 0, 0, fmt.Errorf("Real batch must have shape %v, but got %v", expected, real.Shape())
	}

	// Do step on evaluation graph for obtaining 'generatedSamples' (Generator output)
	if err = gorgonia.Let(t.inputGenerator, NormRandDense(t.rng, t.batchSize, t.latentSize)); err != nil {
		return 0, 0, errors.Wrap(err, "Can't init Generator input")
	}
	if err = t.tmGenerator.RunAll(); err != nil {
		return 0, 0, errors.Wrap(err, "Can't run Generator")
	}
	t.tmGenerator.Reset()
	generated, ok := t.generatedSamples.(tensor.Tensor)
	if !ok {
		return 0, 0, fmt.Errorf("Generator output is not a tensor: %T", t.generatedSamples)
	}

	// Concat real and fake input data
	allSamples, err := tensor.Concat(0, real, generated)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "Can't concat real %v and generated %v samples", real.Shape(), generated.Shape())
	}
	if err = gorgonia.Let(t.inputDiscriminatorTrain, allSamples); err != nil {
		return 0, 0, errors.Wrap(err, "Can't init Discriminator input")
	}
	if err = gorgonia.Let(t.targetDiscriminatorTrain, t.allSamplesLabels); err != nil {
		return 0, 0, errors.Wrap(err, "Can't init Discriminator target")
	}
	// Do training step for Discriminator in training mode
	if err = t.tmDisTrain.RunAll(); err != nil {
		return 0, 0, errors.Wrap(err, "Can't run Discriminator")
	}
	if err = t.solverDiscriminatorTrain.Step(gorgonia.NodesToValueGrads(t.discriminator.Learnables())); err != nil {
		return 0, 0, errors.Wrap(err, "Can't do Discriminator's solver step")
	}
	t.tmDisTrain.Reset()
	if err = t.gan.SyncDiscriminator(); err != nil {
		return 0, 0, err
	}

	// Do training step for Generator
	if err = gorgonia.Let(t.inputGenerator, NormRandDense(t.rng, t.batchSize, t.latentSize)); err != nil {
		return 0, 0, errors.Wrap(err, "Can't init Generator input")
	}
	if err = gorgonia.Let(t.targetDiscriminatorGAN, t.ganLabels); err != nil {
		return 0, 0, errors.Wrap(err, "Can't init GAN target")
	}
	if err = t.tmGAN.RunAll(); err != nil {
		return 0, 0, errors.Wrap(err, "Can't run GAN")
	}
	if err = t.solverGAN.Step(gorgonia.NodesToValueGrads(t.gan.GeneratorLearnables())); err != nil {
		return 0, 0, errors.Wrap(err, "Can't do GAN's solver step")
	}
	t.tmGAN.Reset()

	if dLoss, err = scalarValue(t.costValDiscriminatorTrain); err != nil {
		return 0, 0, errors.Wrap(err, "Bad Discriminator cost")
	}
	if gLoss, err = scalarValue(t.costValGAN); err != nil {
		return 0, 0, errors.Wrap(err, "Bad GAN cost")
	}
	return dLoss, gLoss, nil
}

// Train Runs configured number of epochs over loader. Stops between batches when ctx is done.
// Loader must not yield incomplete batches (see datasets.WithDropLast)
func (t *Trainer) Train(ctx context.Context, loader *datasets.DataLoader) (*History, error) {
	if loader.BatchSize() != t.batchSize {
		return nil, fmt.Errorf("Loader batch size is %d, but graphs are defined for %d", loader.BatchSize(), t.batchSize)
	}
	tr := t.conf.Training
	if tr.OutputDir != "" {
		if err := os.MkdirAll(tr.OutputDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "Can't create output directory '%s'", tr.OutputDir)
		}
	}
	history := &History{}
	for epoch := 0; epoch < tr.Epochs; epoch++ {
		st := time.Now()
		loader.Epoch()
		epochLoss := EpochLoss{Epoch: epoch}
		for b := 0; ; b++ {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			batch, ok, err := loader.Next()
			if err != nil {
				return history, errors.Wrapf(err, "Can't fetch batch #%d", b)
			}
			if !ok {
				break
			}
			if batch.Shape()[0] != t.batchSize {
				t.log.WithFields(logrus.Fields{"epoch": epoch, "batch": b, "size": batch.Shape()[0]}).Debug("Skip incomplete batch")
				continue
			}
			dLoss, gLoss, err := t.Step(batch)
			if err != nil {
				return history, errors.Wrapf(err, "Epoch %d, batch %d", epoch, b)
			}
			epochLoss.Batches++
			epochLoss.DiscriminatorLoss += dLoss
			epochLoss.GeneratorLoss += gLoss
			if tr.LogEvery > 0 && b%tr.LogEvery == 0 {
				t.log.WithFields(logrus.Fields{
					"epoch":  epoch,
					"batch":  b,
					"d_loss": dLoss,
					"g_loss": gLoss,
				}).Debug("Training step")
			}
		}
		if epochLoss.Batches == 0 {
			return history, fmt.Errorf("Epoch %d has no complete batches of size %d", epoch, t.batchSize)
		}
		epochLoss.DiscriminatorLoss /= float64(epochLoss.Batches)
		epochLoss.GeneratorLoss /= float64(epochLoss.Batches)
		epochLoss.Took = time.Since(st)
		history.Epochs = append(history.Epochs, epochLoss)
		t.log.WithFields(logrus.Fields{
			"epoch":   epoch,
			"batches": epochLoss.Batches,
			"d_loss":  epochLoss.DiscriminatorLoss,
			"g_loss":  epochLoss.GeneratorLoss,
			"took":    epochLoss.Took,
		}).Info("Epoch done")

		if tr.OutputDir != "" && tr.SampleEvery > 0 && (epoch+1)%tr.SampleEvery == 0 {
			fname := filepath.Join(tr.OutputDir, fmt.Sprintf("sample_epoch_%03d.png", epoch))
			if err := t.SaveSample(fname); err != nil {
				t.log.WithError(err).Warn("Can't save generated sample")
			}
		}
	}
	if tr.OutputDir != "" && tr.PlotFileName != "" {
		if err := PlotLosses(history, filepath.Join(tr.OutputDir, tr.PlotFileName)); err != nil {
			t.log.WithError(err).Warn("Can't plot losses")
		}
	}
	if tr.OutputDir != "" && tr.SaveWeights {
		if err := t.SaveWeights(filepath.Join(tr.OutputDir, WeightsFileName)); err != nil {
			return history, err
		}
	}
	return history, nil
}

// Generate Generates n spectrograms (C, H, W) in original (denormalized) scale
func (t *Trainer) Generate(n int) ([]*tensor.Dense, error) {
	samples := make([]*tensor.Dense, 0, n)
	sampleSize := t.sampleShape.TotalSize()
	for len(samples) < n {
		if err := gorgonia.Let(t.inputGenerator, NormRandDense(t.rng, t.batchSize, t.latentSize)); err != nil {
			return nil, errors.Wrap(err, "Can't init Generator input")
		}
		if err := t.tmGenerator.RunAll(); err != nil {
			return nil, errors.Wrap(err, "Can't run Generator")
		}
		t.tmGenerator.Reset()
		generated, ok := t.generatedSamples.(tensor.Tensor)
		if !ok {
			return nil, fmt.Errorf("Generator output is not a tensor: %T", t.generatedSamples)
		}
		data, ok := generated.Data().([]float64)
		if !ok {
			return nil, fmt.Errorf("Generator output must hold float64 values")
		}
		for i := 0; i < t.batchSize && len(samples) < n; i++ {
			backing := make([]float64, sampleSize)
			copy(backing, data[i*sampleSize:(i+1)*sampleSize])
			sample := tensor.New(tensor.WithShape(t.sampleShape.Clone()...), tensor.WithBacking(backing))
			denormalized, err := t.normalize.Denormalize(sample)
			if err != nil {
				return nil, errors.Wrap(err, "Can't denormalize generated sample")
			}
			samples = append(samples, denormalized)
		}
	}
	return samples, nil
}

// SaveSample Generates single spectrogram and saves its first channel as PNG
func (t *Trainer) SaveSample(fname string) error {
	samples, err := t.Generate(1)
	if err != nil {
		return err
	}
	spec, err := spectrogram.FromDense(samples[0])
	if err != nil {
		return err
	}
	return spec.SavePNG(fname, 0)
}

func scalarValue(v gorgonia.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("Value has not been computed yet")
	}
	switch d := v.Data().(type) {
	case float64:
		return d, nil
	case float32:
		return float64(d), nil
	case []float64:
		if len(d) == 1 {
			return d[0], nil
		}
	}
	return 0, fmt.Errorf("Value %v is not a scalar", v)
}
