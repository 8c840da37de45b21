package techno_gan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// evalLoss Evaluates loss for 2x2 prediction and target
func evalLoss(t *testing.T, lossFn LossFunc, prediction, target []float64, reduction ...LossReduction) float64 {
	t.Helper()
	g := gorgonia.NewGraph()
	a := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("prediction"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(prediction))))
	b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("target"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(target))))
	cost, err := lossFn(a, b, reduction...)
	require.NoError(t, err)
	var costVal gorgonia.Value
	gorgonia.Read(cost, &costVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	v, err := scalarValue(costVal)
	require.NoError(t, err)
	return v
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func TestLossByName(t *testing.T) {
	for _, name := range []string{"", "mse", "bce", "bce_logits", "l1"} {
		fn, err := LossByName(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, fn, name)
	}
	_, err := LossByName("huber")
	assert.Error(t, err)
}

func TestMSELoss(t *testing.T) {
	prediction := []float64{1, 2, 3, 4}
	target := []float64{1, 0, 4, 2}
	// squared errors: 0, 4, 1, 4
	assert.InDelta(t, 9.0/4, evalLoss(t, MSELoss, prediction, target), 1e-9)
	assert.InDelta(t, 9.0, evalLoss(t, MSELoss, prediction, target, LossReductionSum), 1e-9)
}

func TestL1Loss(t *testing.T) {
	assert.InDelta(t, 5.0/4, evalLoss(t, L1Loss, []float64{1, 2, 3, 4}, []float64{1, 0, 4, 2}), 1e-9)
}

func TestBCEWithLogitsLoss(t *testing.T) {
	logits := []float64{0, 2, -1, 3}
	target := []float64{1, 0, 0, 1}
	expected := 0.0
	probs := make([]float64, len(logits))
	for i, x := range logits {
		p := sigmoid(x)
		probs[i] = p
		expected -= target[i]*math.Log(p) + (1-target[i])*math.Log(1-p)
	}
	expected /= float64(len(logits))
	assert.InDelta(t, expected, evalLoss(t, BCEWithLogitsLoss, logits, target), 1e-9)
	// Probability-based version agrees with logits-based one
	assert.InDelta(t, expected, evalLoss(t, BinaryCrossEntropyLoss, probs, target), 1e-9)
}

func TestBCEWithLogitsLoss_Large(t *testing.T) {
	// exp(1000) overflows, stable formulation must not
	v := evalLoss(t, BCEWithLogitsLoss, []float64{1000, -1000, 1000, -1000}, []float64{0, 1, 1, 0})
	assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	assert.InDelta(t, 500.0, v, 1e-9)
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"", "none", "tanh", "sigmoid", "relu", "leaky_relu"} {
		fn, err := ActivationByName(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, fn, name)
	}
	_, err := ActivationByName("gelu")
	assert.Error(t, err)
}

func TestLeakyReLU(t *testing.T) {
	g := gorgonia.NewGraph()
	x := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(3), gorgonia.WithName("x"), gorgonia.WithValue(tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{-10, 0, 5}))))
	out, err := LeakyReLU(0.2)(x)
	require.NoError(t, err)
	var outVal gorgonia.Value
	gorgonia.Read(out, &outVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	require.NoError(t, tm.RunAll())
	assert.InDeltaSlice(t, []float64{-2, 0, 5}, outVal.Data().([]float64), 1e-12)
}
