package techno_gan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// DefaultBatchNormEpsilon Same as torch.nn.BatchNorm2d
	DefaultBatchNormEpsilon = 1e-5
)

// batchNorm2d Normalizes (N, C, H, W) input per channel using statistics of current batch:
//
// y = γ * (x - mean) / sqrt(var + eps) + β
//
// gamma and beta are expected to be shaped (1, C, 1, 1)
//
func batchNorm2d(x, gamma, beta *gorgonia.Node, eps float64) (*gorgonia.Node, error) {
	if x.Dims() != 4 {
		return nil, fmt.Errorf("BatchNorm2d expects 4D input (N, C, H, W), but got shape %v", x.Shape())
	}
	if eps <= 0 {
		eps = DefaultBatchNormEpsilon
	}
	channels := x.Shape()[1]
	statsShape := tensor.Shape{1, channels, 1, 1}
	broadcastAxes := []byte{0, 2, 3}

	mean, err := gorgonia.Mean(x, 0, 2, 3)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(x) along (N, H, W)")
	}
	mean, err = gorgonia.Reshape(mean, statsShape)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape batch mean")
	}
	centered, err := gorgonia.BroadcastSub(x, mean, nil, broadcastAxes)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x-mean)")
	}
	sqr, err := gorgonia.Square(centered)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x-mean)^2")
	}
	variance, err := gorgonia.Mean(sqr, 0, 2, 3)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean((x-mean)^2) along (N, H, W)")
	}
	variance, err = gorgonia.Reshape(variance, statsShape)
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape batch variance")
	}
	epsScalar := gorgonia.NewScalar(x.Graph(), x.Dtype(), gorgonia.WithValue(eps))
	varEps, err := gorgonia.Add(variance, epsScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (var+eps)")
	}
	invStd, err := gorgonia.InverseSqrt(varEps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do 1/√(var+eps)")
	}
	normalized, err := gorgonia.BroadcastHadamardProd(centered, invStd, nil, broadcastAxes)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x-mean)/√(var+eps)")
	}
	if gamma != nil {
		normalized, err = gorgonia.BroadcastHadamardProd(normalized, gamma, nil, broadcastAxes)
		if err != nil {
			return nil, errors.Wrap(err, "Can't scale normalized output by γ")
		}
	}
	if beta != nil {
		normalized, err = gorgonia.BroadcastAdd(normalized, beta, nil, broadcastAxes)
		if err != nil {
			return nil, errors.Wrap(err, "Can't shift normalized output by β")
		}
	}
	return normalized, nil
}
