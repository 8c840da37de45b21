package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// LossFunc Signature shared by all losses: a - prediction, b - target
type LossFunc func(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error)

// LossByName Returns loss function for its configuration name.
//
// Known names: "mse", "bce", "bce_logits", "l1"
//
func LossByName(name string) (LossFunc, error) {
	switch name {
	case "mse":
		return MSELoss, nil
	case "bce":
		return BinaryCrossEntropyLoss, nil
	case "", "bce_logits":
		return BCEWithLogitsLoss, nil
	case "l1":
		return L1Loss, nil
	default:
		return nil, fmt.Errorf("Loss '%s' is not handled", name)
	}
}

func reduce(x *gorgonia.Node, reduction []LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(x)
	case LossReductionMean:
		return gorgonia.Mean(x)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return reduce(sqr, reduction)
}

// BinaryCrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// A is expected to hold probabilities in (0, 1), e.g. output of Sigmoid.
//
// loss = -[B*log(A) + (1-B)*log(1-A)]
//
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	logMain, err := gorgonia.Log(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	hprodMain, err := gorgonia.HadamardProd(b, logMain)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do B.*log(A)")
	}
	onesTensor := gorgonia.NewTensor(a.Graph(), a.Dtype(), a.Dims(), gorgonia.WithShape(a.Shape()...), gorgonia.WithInit(gorgonia.Ones()))
	oneSubA, err := gorgonia.Sub(onesTensor, a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	logBin, err := gorgonia.Log(oneSubA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-A)")
	}
	oneSubB, err := gorgonia.Sub(onesTensor, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B)")
	}
	hprodBin, err := gorgonia.HadamardProd(oneSubB, logBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B).*log(1-A)")
	}
	sum, err := gorgonia.Add(hprodMain, hprodBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	neg, err := gorgonia.Neg(sum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return reduce(neg, reduction)
}

// BCEWithLogitsLoss Binary cross entropy for raw scores (logits) A. Same as torch.nn.BCEWithLogitsLoss.
// DCGAN discriminator has no output activation so this is default loss for it.
//
// loss = max(A, 0) - A*B + log(1 + exp(-|A|))
//
// Default reduction is 'mean'
func BCEWithLogitsLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	relu, err := gorgonia.Rectify(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(A, 0)")
	}
	hprod, err := gorgonia.HadamardProd(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A.*B)")
	}
	abs, err := gorgonia.Abs(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |A|")
	}
	negAbs, err := gorgonia.Neg(abs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -|A|")
	}
	exp, err := gorgonia.Exp(negAbs)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do exp(-|A|)")
	}
	softplus, err := gorgonia.Log1p(exp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1+x)")
	}
	sub, err := gorgonia.Sub(relu, hprod)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do max(A, 0) - A.*B")
	}
	loss, err := gorgonia.Add(sub, softplus)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	return reduce(loss, reduction)
}

// L1Loss See ref. https://en.wikipedia.org/wiki/Least_absolute_deviations
// Default reduction is 'mean'
func L1Loss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	abs, err := gorgonia.Abs(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	return reduce(abs, reduction)
}
