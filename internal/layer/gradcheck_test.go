package layer

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// Analytic gradients are verified against central finite differences of
// the scalar J = sum(upstream_i * out_i): dJ/dtheta computed by
// Backward must match the numeric estimate for every variant.

var fdSettings = &fd.Settings{Formula: fd.Central, Step: 1e-6}

func randomVolume(rng *rand.Rand, w, h, d int) *volume.Volume {
	v := volume.New(w, h, d, 0)
	for i := range v.Data {
		v.Data[i] = rng.NormFloat64()
	}
	return v
}

func flatParams(pairs []ParamPair) []float64 {
	var flat []float64
	for _, pg := range pairs {
		flat = append(flat, pg.Params...)
	}
	return flat
}

func setParams(pairs []ParamPair, flat []float64) {
	off := 0
	for _, pg := range pairs {
		copy(pg.Params, flat[off:off+len(pg.Params)])
		off += len(pg.Params)
	}
}

func flatGrads(pairs []ParamPair) []float64 {
	var flat []float64
	for _, pg := range pairs {
		flat = append(flat, pg.Grads...)
	}
	return flat
}

// checkLayerGradients runs the gradient-check property on one layer:
// parameter gradients (if any) and input gradients both have to match
// finite differences.
func checkLayerGradients(t *testing.T, l Layer, in *volume.Volume, rng *rand.Rand) {
	t.Helper()

	out := l.Forward(in, true)
	upstream := make([]float64, out.Len())
	for i := range upstream {
		upstream[i] = rng.NormFloat64()
	}
	copy(out.Grad, upstream)
	l.Backward()

	analyticInput := append([]float64(nil), in.Grad...)
	pairs := l.ParamsAndGrads()
	analyticParams := flatGrads(pairs)

	objective := func(output *volume.Volume) float64 {
		j := 0.0
		for i, u := range upstream {
			j += u * output.Data[i]
		}
		return j
	}

	// Input gradient.
	base := append([]float64(nil), in.Data...)
	numericInput := fd.Gradient(nil, func(x []float64) float64 {
		copy(in.Data, x)
		return objective(l.Forward(in, true))
	}, base, fdSettings)
	copy(in.Data, base)
	if !floats.EqualApprox(analyticInput, numericInput, 1e-4) {
		t.Errorf("%s: input gradient mismatch\nanalytic %v\nnumeric  %v",
			l.Kind(), analyticInput, numericInput)
	}

	// Parameter gradients.
	if len(pairs) > 0 {
		baseParams := flatParams(pairs)
		numericParams := fd.Gradient(nil, func(p []float64) float64 {
			setParams(pairs, p)
			return objective(l.Forward(in, true))
		}, baseParams, fdSettings)
		setParams(pairs, baseParams)
		if !floats.EqualApprox(analyticParams, numericParams, 1e-4) {
			t.Errorf("%s: parameter gradient mismatch", l.Kind())
		}
	}
}

func TestConvGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	l := mustNew(t, Config{
		Kind: Conv, Filters: 3, KernelWidth: 3, KernelHeight: 3, Stride: 2, Pad: 1,
	}, 5, 5, 2)
	checkLayerGradients(t, l, randomVolume(rng, 5, 5, 2), rng)
}

func TestDenseGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	l := mustNew(t, Config{Kind: Dense, Neurons: 4, BiasPref: 0.1}, 1, 1, 6)
	checkLayerGradients(t, l, randomVolume(rng, 1, 1, 6), rng)
}

func TestActivationGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for _, kind := range []Kind{ReLU, Sigmoid, Tanh} {
		l := mustNew(t, Config{Kind: kind}, 3, 3, 2)
		in := randomVolume(rng, 3, 3, 2)
		// Keep activations away from the relu kink, where the
		// two-sided difference is not the derivative.
		for i, x := range in.Data {
			if x > -0.1 && x < 0.1 {
				in.Data[i] = 0.5
			}
		}
		checkLayerGradients(t, l, in, rng)
	}
}

func TestMaxoutGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	l := mustNew(t, Config{Kind: Maxout, GroupSize: 2}, 3, 3, 4)
	// Spread the values so no group has a near-tie at the max; ties
	// make the numeric derivative ill-defined.
	in := volume.New(3, 3, 4, 0)
	for i := range in.Data {
		in.Data[i] = float64(i%7) + 0.1*rng.Float64()
	}
	checkLayerGradients(t, l, in, rng)
}

func TestSoftmaxLossGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(25))
	l := mustNew(t, Config{Kind: Softmax, Classes: 5}, 1, 1, 5)
	in := randomVolume(rng, 1, 1, 5)
	const label = 3

	l.Forward(in, true)
	if _, err := l.(LossLayer).BackwardLoss(Class(label)); err != nil {
		t.Fatal(err)
	}
	analytic := append([]float64(nil), in.Grad...)

	base := append([]float64(nil), in.Data...)
	numeric := fd.Gradient(nil, func(x []float64) float64 {
		copy(in.Data, x)
		l.Forward(in, true)
		loss, err := l.(LossLayer).BackwardLoss(Class(label))
		if err != nil {
			t.Fatal(err)
		}
		return loss
	}, base, fdSettings)

	if !floats.EqualApprox(analytic, numeric, 1e-4) {
		t.Errorf("softmax loss gradient mismatch\nanalytic %v\nnumeric  %v", analytic, numeric)
	}
}

func TestRegressionLossGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(26))
	l := mustNew(t, Config{Kind: Regression, Neurons: 4}, 1, 1, 4)
	in := randomVolume(rng, 1, 1, 4)
	target := Vec([]float64{0.5, -0.25, 1, 0})

	l.Forward(in, true)
	if _, err := l.(LossLayer).BackwardLoss(target); err != nil {
		t.Fatal(err)
	}
	analytic := append([]float64(nil), in.Grad...)

	base := append([]float64(nil), in.Data...)
	numeric := fd.Gradient(nil, func(x []float64) float64 {
		copy(in.Data, x)
		l.Forward(in, true)
		loss, err := l.(LossLayer).BackwardLoss(target)
		if err != nil {
			t.Fatal(err)
		}
		return loss
	}, base, fdSettings)

	if !floats.EqualApprox(analytic, numeric, 1e-4) {
		t.Errorf("regression loss gradient mismatch\nanalytic %v\nnumeric  %v", analytic, numeric)
	}
}
