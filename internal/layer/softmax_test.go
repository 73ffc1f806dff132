package layer

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

func TestSoftmaxIsDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	l := mustNew(t, Config{Kind: Softmax, Classes: 6}, 1, 1, 6)

	inputs := [][]float64{
		{0, 0, 0, 0, 0, 0},
		{1, 2, 3, 4, 5, 6},
		{-1000, 0, 1000, 3, -3, 0.5},
		{1e8, 1e8, 1e8, 1e8, 1e8, 1e8},
	}
	for i := 0; i < 20; i++ {
		x := make([]float64, 6)
		for j := range x {
			x[j] = rng.NormFloat64() * 50
		}
		inputs = append(inputs, x)
	}

	for _, x := range inputs {
		out := l.Forward(volume.FromSlice(x), false)
		for i, p := range out.Data {
			if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
				t.Fatalf("softmax(%v)[%d] = %v", x, i, p)
			}
		}
		if s := floats.Sum(out.Data); math.Abs(s-1) > 1e-9 {
			t.Errorf("softmax(%v) sums to %v, want 1", x, s)
		}
	}
}

func TestSoftmaxLossAndGradient(t *testing.T) {
	l := mustNew(t, Config{Kind: Softmax, Classes: 3}, 1, 1, 3)
	in := volume.FromSlice([]float64{1, 2, 3})
	out := l.Forward(in, false)

	loss, err := l.(LossLayer).BackwardLoss(Class(2))
	if err != nil {
		t.Fatalf("BackwardLoss: %v", err)
	}
	if want := -math.Log(out.Data[2]); math.Abs(loss-want) > 1e-12 {
		t.Errorf("loss = %v, want %v", loss, want)
	}

	// Gradient is p - onehot(2).
	for i, p := range out.Data {
		want := p
		if i == 2 {
			want -= 1
		}
		if math.Abs(in.Grad[i]-want) > 1e-12 {
			t.Errorf("grad[%d] = %v, want %v", i, in.Grad[i], want)
		}
	}
}

func TestSoftmaxOneHotTargetMatchesLabel(t *testing.T) {
	x := []float64{0.5, -1, 2, 0}

	a := mustNew(t, Config{Kind: Softmax, Classes: 4}, 1, 1, 4)
	inA := volume.FromSlice(x)
	a.Forward(inA, false)
	lossA, err := a.(LossLayer).BackwardLoss(Class(1))
	if err != nil {
		t.Fatal(err)
	}

	b := mustNew(t, Config{Kind: Softmax, Classes: 4}, 1, 1, 4)
	inB := volume.FromSlice(x)
	b.Forward(inB, false)
	lossB, err := b.(LossLayer).BackwardLoss(Vec([]float64{0, 1, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(lossA-lossB) > 1e-12 {
		t.Errorf("label loss %v != one-hot loss %v", lossA, lossB)
	}
	if !floats.EqualApprox(inA.Grad, inB.Grad, 1e-12) {
		t.Errorf("label grad %v != one-hot grad %v", inA.Grad, inB.Grad)
	}
}

func TestSoftmaxTargetValidation(t *testing.T) {
	l := mustNew(t, Config{Kind: Softmax, Classes: 3}, 1, 1, 3)
	l.Forward(volume.FromSlice([]float64{1, 2, 3}), false)
	ll := l.(LossLayer)

	if _, err := ll.BackwardLoss(Class(3)); err == nil {
		t.Error("out-of-range label should fail")
	}
	if _, err := ll.BackwardLoss(Class(-1)); err == nil {
		t.Error("negative label should fail")
	}
	if _, err := ll.BackwardLoss(Vec([]float64{1, 0})); err == nil {
		t.Error("mis-sized distribution should fail")
	}
}

func TestSoftmaxInitRejectsSizeMismatch(t *testing.T) {
	l, err := New(Config{Kind: Softmax, Classes: 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Init(1, 1, 3); err == nil {
		t.Error("softmax over 5 classes should reject 3 inputs")
	}
}
