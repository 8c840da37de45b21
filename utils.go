package techno_gan

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values
//
// rng - source of randomness. If nil then global math/rand source is used
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func NormRandDense(rng *rand.Rand, batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		if rng != nil {
			data[i] = rng.NormFloat64()
		} else {
			data[i] = rand.NormFloat64()
		}
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// LabelsDense Returns tensor of shape (rows, cols) filled with provided label
func LabelsDense(rows, cols int, label float64) *tensor.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = label
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
}

// PlotLosses Plot loss curves of Discriminator and Generator (one point per epoch) and save them into image file
func PlotLosses(history *History, fname string) error {
	if history == nil || len(history.Epochs) == 0 {
		return fmt.Errorf("Nothing to plot: history is empty")
	}
	dPoints := make(plotter.XYs, len(history.Epochs))
	gPoints := make(plotter.XYs, len(history.Epochs))
	for i, e := range history.Epochs {
		dPoints[i].X = float64(e.Epoch)
		dPoints[i].Y = e.DiscriminatorLoss
		gPoints[i].X = float64(e.Epoch)
		gPoints[i].Y = e.GeneratorLoss
	}
	dLine, err := plotter.NewLine(dPoints)
	if err != nil {
		return errors.Wrap(err, "Can't init discriminator loss line")
	}
	dLine.LineStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	gLine, err := plotter.NewLine(gPoints)
	if err != nil {
		return errors.Wrap(err, "Can't init generator loss line")
	}
	gLine.LineStyle.Color = color.RGBA{G: 128, B: 255, A: 255}
	p := plot.New()
	p.Title.Text = "GAN losses"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(dLine, gLine)
	p.Legend.Add("discriminator", dLine)
	p.Legend.Add("generator", gLine)
	// Save the plot to a PNG file.
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
