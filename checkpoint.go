package techno_gan

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// WeightsFileName Default name of checkpoint file in output directory
	WeightsFileName = "weights.gob"
)

// checkpoint Values of learnables keyed by node name
type checkpoint struct {
	Generator     map[string]*tensor.Dense
	Discriminator map[string]*tensor.Dense
}

// SaveWeights Stores current values of Generator and Discriminator learnables into gob file
func (t *Trainer) SaveWeights(fname string) error {
	cp := checkpoint{}
	var err error
	if cp.Generator, err = nodesValues(t.generator.Learnables()); err != nil {
		return errors.Wrap(err, "Can't collect Generator weights")
	}
	if cp.Discriminator, err = nodesValues(t.discriminator.Learnables()); err != nil {
		return errors.Wrap(err, "Can't collect Discriminator weights")
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", fname)
	}
	if err = gob.NewEncoder(f).Encode(cp); err != nil {
		f.Close()
		return errors.Wrap(err, "Can't encode weights")
	}
	return errors.Wrap(f.Close(), "Can't close weights file")
}

// LoadWeights Restores values of Generator and Discriminator learnables from gob file written by SaveWeights.
// Architecture (and therefore names and shapes of learnables) must match
func (t *Trainer) LoadWeights(fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't open '%s'", fname)
	}
	defer f.Close()
	cp := checkpoint{}
	if err = gob.NewDecoder(f).Decode(&cp); err != nil {
		return errors.Wrapf(err, "Can't decode weights from '%s'", fname)
	}
	if err = assignValues(t.generator.Learnables(), cp.Generator); err != nil {
		return errors.Wrap(err, "Can't restore Generator weights")
	}
	if err = assignValues(t.discriminator.Learnables(), cp.Discriminator); err != nil {
		return errors.Wrap(err, "Can't restore Discriminator weights")
	}
	return t.gan.SyncDiscriminator()
}

func nodesValues(nodes gorgonia.Nodes) (map[string]*tensor.Dense, error) {
	values := make(map[string]*tensor.Dense, len(nodes))
	for _, n := range nodes {
		data, err := float64Data(n)
		if err != nil {
			return nil, err
		}
		backing := make([]float64, len(data))
		copy(backing, data)
		values[n.Name()] = tensor.New(tensor.WithShape(n.Shape().Clone()...), tensor.WithBacking(backing))
	}
	return values, nil
}

func assignValues(nodes gorgonia.Nodes, values map[string]*tensor.Dense) error {
	for _, n := range nodes {
		v, ok := values[n.Name()]
		if !ok {
			return fmt.Errorf("No stored value for '%s'", n.Name())
		}
		if !v.Shape().Eq(n.Shape()) {
			return fmt.Errorf("Stored value for '%s' has shape %v, but node has %v", n.Name(), v.Shape(), n.Shape())
		}
		src, ok := v.Data().([]float64)
		if !ok {
			return fmt.Errorf("Stored value for '%s' must hold float64 values", n.Name())
		}
		dst, err := float64Data(n)
		if err != nil {
			return err
		}
		copy(dst, src)
	}
	return nil
}
