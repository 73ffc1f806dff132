package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// softmaxLayer is the classification loss layer. Forward squashes the
// flattened input into a probability distribution using the
// numerically stable form (max subtracted before exponentiation).
// BackwardLoss seeds the gradient p - y and returns the cross-entropy
// loss against an integer label or a target distribution.
type softmaxLayer struct {
	classes int

	in, out *volume.Volume
}

func newSoftmax(cfg Config) (Layer, error) {
	if cfg.Classes <= 0 {
		return nil, fmt.Errorf("layer: softmax needs a positive class count, got %d", cfg.Classes)
	}
	return &softmaxLayer{classes: cfg.Classes}, nil
}

func (l *softmaxLayer) Kind() Kind { return Softmax }

func (l *softmaxLayer) Init(inWidth, inHeight, inDepth int) error {
	if n := inWidth * inHeight * inDepth; n != l.classes {
		return fmt.Errorf("layer: softmax over %d classes got %d inputs", l.classes, n)
	}
	return nil
}

func (l *softmaxLayer) OutWidth() int  { return 1 }
func (l *softmaxLayer) OutHeight() int { return 1 }
func (l *softmaxLayer) OutDepth() int  { return l.classes }

func (l *softmaxLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	if in.Len() != l.classes {
		panic(fmt.Sprintf("layer: softmax expects %d inputs, got %d", l.classes, in.Len()))
	}
	l.in = in
	out := volume.New(1, 1, l.classes, 0)

	amax := in.Data[0]
	for _, x := range in.Data[1:] {
		if x > amax {
			amax = x
		}
	}
	esum := 0.0
	for i, x := range in.Data {
		e := math.Exp(x - amax)
		out.Data[i] = e
		esum += e
	}
	for i := range out.Data {
		out.Data[i] /= esum
	}

	l.out = out
	return out
}

// Backward without a target is meaningless for a loss layer; the net
// drives this layer through BackwardLoss instead.
func (l *softmaxLayer) Backward() {
	panic("layer: softmax backward requires a target, use BackwardLoss")
}

// BackwardLoss seeds the input gradient with p - y and returns the
// cross-entropy loss. The target is either a class index or a
// one-hot/distribution vector of matching length.
func (l *softmaxLayer) BackwardLoss(t Target) (float64, error) {
	if l.in == nil {
		panic("layer: softmax backward before forward")
	}
	in, p := l.in, l.out.Data

	if t.IsVec() {
		y := t.Values()
		if len(y) != l.classes {
			return 0, fmt.Errorf("layer: softmax target has %d entries, want %d", len(y), l.classes)
		}
		loss := 0.0
		for i := range p {
			in.Grad[i] = p[i] - y[i]
			if y[i] > 0 {
				loss -= y[i] * math.Log(math.Max(p[i], 1e-20))
			}
		}
		return loss, nil
	}

	label := t.ClassIndex()
	if label < 0 || label >= l.classes {
		return 0, fmt.Errorf("layer: softmax label %d out of range [0, %d)", label, l.classes)
	}
	for i := range p {
		indicator := 0.0
		if i == label {
			indicator = 1
		}
		in.Grad[i] = p[i] - indicator
	}
	return -math.Log(math.Max(p[label], 1e-20)), nil
}

func (l *softmaxLayer) Output() *volume.Volume { return l.out }

func (l *softmaxLayer) ParamsAndGrads() []ParamPair { return nil }

func (l *softmaxLayer) Config() Config {
	return Config{Kind: Softmax, Classes: l.classes}
}
