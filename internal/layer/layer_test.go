// Package layer unit tests: output dimension formulas, construction
// validation and per-variant forward/backward behavior.
package layer

import (
	"math"
	"testing"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

func mustNew(t *testing.T, cfg Config, inW, inH, inD int) Layer {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%s): %v", cfg.Kind, err)
	}
	if err := l.Init(inW, inH, inD); err != nil {
		t.Fatalf("Init(%s): %v", cfg.Kind, err)
	}
	return l
}

func TestConvOutputDimensions(t *testing.T) {
	cases := []struct {
		kernel, stride, pad    int
		inW, inH, inD, filters int
		wantW, wantH           int
	}{
		{3, 1, 2, 24, 24, 1, 8, 26, 26},
		{5, 1, 2, 24, 24, 1, 8, 24, 24},
		{3, 2, 1, 9, 9, 3, 4, 5, 5},
		{1, 1, 0, 7, 7, 2, 2, 7, 7},
	}
	for _, c := range cases {
		l := mustNew(t, Config{
			Kind: Conv, KernelWidth: c.kernel, KernelHeight: c.kernel,
			Stride: c.stride, Pad: c.pad, Filters: c.filters,
		}, c.inW, c.inH, c.inD)
		if l.OutWidth() != c.wantW || l.OutHeight() != c.wantH || l.OutDepth() != c.filters {
			t.Errorf("conv k%d s%d p%d on %dx%dx%d: got %dx%dx%d, want %dx%dx%d",
				c.kernel, c.stride, c.pad, c.inW, c.inH, c.inD,
				l.OutWidth(), l.OutHeight(), l.OutDepth(), c.wantW, c.wantH, c.filters)
		}
	}
}

func TestDenseOutputDimensions(t *testing.T) {
	l := mustNew(t, Config{Kind: Dense, Neurons: 12}, 4, 4, 3)
	if l.OutWidth() != 1 || l.OutHeight() != 1 || l.OutDepth() != 12 {
		t.Errorf("dense dims %dx%dx%d, want 1x1x12", l.OutWidth(), l.OutHeight(), l.OutDepth())
	}
}

func TestMaxoutOutputDimensions(t *testing.T) {
	l := mustNew(t, Config{Kind: Maxout, GroupSize: 3}, 5, 5, 9)
	if l.OutWidth() != 5 || l.OutHeight() != 5 || l.OutDepth() != 3 {
		t.Errorf("maxout dims %dx%dx%d, want 5x5x3", l.OutWidth(), l.OutHeight(), l.OutDepth())
	}

	bad, err := New(Config{Kind: Maxout, GroupSize: 4})
	if err != nil {
		t.Fatalf("New(maxout): %v", err)
	}
	if err := bad.Init(5, 5, 9); err == nil {
		t.Error("expected an error when group size does not divide depth")
	}
}

func TestInitIsIdempotent(t *testing.T) {
	l := mustNew(t, Config{Kind: Dense, Neurons: 4}, 1, 1, 6)
	before := append([]float64(nil), l.ParamsAndGrads()[0].Params...)
	if err := l.Init(1, 1, 6); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	after := l.ParamsAndGrads()[0].Params
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("repeated Init rerolled the weights")
		}
	}
}

func TestConstructionValidation(t *testing.T) {
	bad := []Config{
		{Kind: Conv, Filters: 0, KernelWidth: 3, KernelHeight: 3},
		{Kind: Conv, Filters: 2, KernelWidth: 0, KernelHeight: 3},
		{Kind: Conv, Filters: 2, KernelWidth: 3, KernelHeight: 3, Pad: -1},
		{Kind: Dense, Neurons: 0},
		{Kind: Dropout, DropProb: 1.0},
		{Kind: Dropout, DropProb: -0.1},
		{Kind: Softmax, Classes: 0},
		{Kind: Regression, Neurons: -1},
		{Kind: Input, Width: 0, Height: 1, Depth: 1},
		{Kind: Kind(99)},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) should fail", cfg)
		}
	}
}

func TestBackwardBeforeForwardPanics(t *testing.T) {
	kinds := []Config{
		{Kind: Conv, Filters: 1, KernelWidth: 3, KernelHeight: 3},
		{Kind: Dense, Neurons: 2},
		{Kind: ReLU},
		{Kind: Maxout, GroupSize: 2},
		{Kind: Dropout, DropProb: 0.5},
	}
	for _, cfg := range kinds {
		l := mustNew(t, cfg, 4, 4, 2)
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: backward before forward should panic", cfg.Kind)
				}
			}()
			l.Backward()
		}()
	}
}

func TestDenseForwardMath(t *testing.T) {
	l := mustNew(t, Config{Kind: Dense, Neurons: 2}, 1, 1, 3)
	d := l.(*denseLayer)
	copy(d.weights[0].Data, []float64{1, 2, 3})
	copy(d.weights[1].Data, []float64{-1, 0, 1})
	d.biases.Data[0] = 0.5
	d.biases.Data[1] = -0.5

	out := l.Forward(volume.FromSlice([]float64{1, 1, 2}), false)
	if math.Abs(out.Data[0]-9.5) > 1e-12 {
		t.Errorf("out[0] = %v, want 9.5", out.Data[0])
	}
	if math.Abs(out.Data[1]-0.5) > 1e-12 {
		t.Errorf("out[1] = %v, want 0.5", out.Data[1])
	}
}

func TestReluForward(t *testing.T) {
	l := mustNew(t, Config{Kind: ReLU}, 1, 1, 4)
	out := l.Forward(volume.FromSlice([]float64{-2, -0.5, 0, 3}), false)
	want := []float64{0, 0, 0, 3}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("relu out[%d] = %v, want %v", i, out.Data[i], want[i])
		}
	}
}

func TestSigmoidTanhForward(t *testing.T) {
	x := []float64{-1, 0, 2}

	s := mustNew(t, Config{Kind: Sigmoid}, 1, 1, 3)
	out := s.Forward(volume.FromSlice(x), false)
	for i, xi := range x {
		want := 1 / (1 + math.Exp(-xi))
		if math.Abs(out.Data[i]-want) > 1e-12 {
			t.Errorf("sigmoid(%v) = %v, want %v", xi, out.Data[i], want)
		}
	}

	th := mustNew(t, Config{Kind: Tanh}, 1, 1, 3)
	out = th.Forward(volume.FromSlice(x), false)
	for i, xi := range x {
		if math.Abs(out.Data[i]-math.Tanh(xi)) > 1e-12 {
			t.Errorf("tanh(%v) = %v, want %v", xi, out.Data[i], math.Tanh(xi))
		}
	}
}

func TestRegressionLoss(t *testing.T) {
	l := mustNew(t, Config{Kind: Regression, Neurons: 2}, 1, 1, 2)
	in := volume.FromSlice([]float64{1.0, -2.0})
	out := l.Forward(in, false)
	if out.Data[0] != 1.0 || out.Data[1] != -2.0 {
		t.Fatal("regression forward should be the identity")
	}

	lossLayer := l.(LossLayer)
	loss, err := lossLayer.BackwardLoss(Vec([]float64{0.5, -1.0}))
	if err != nil {
		t.Fatalf("BackwardLoss: %v", err)
	}
	want := 0.5*0.5*0.5 + 0.5*1.0*1.0
	if math.Abs(loss-want) > 1e-12 {
		t.Errorf("loss = %v, want %v", loss, want)
	}
	if math.Abs(in.Grad[0]-0.5) > 1e-12 || math.Abs(in.Grad[1]-(-1.0)) > 1e-12 {
		t.Errorf("grad = %v, want [0.5 -1]", in.Grad)
	}

	if _, err := lossLayer.BackwardLoss(Class(1)); err == nil {
		t.Error("regression should reject a class target")
	}
	if _, err := lossLayer.BackwardLoss(Vec([]float64{1})); err == nil {
		t.Error("regression should reject a mis-sized target")
	}
}
