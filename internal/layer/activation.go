package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// actLayer applies a pointwise nonlinearity. One implementation covers
// ReLU, Sigmoid and Tanh; the derivative is computed from the cached
// output, which all three allow.
type actLayer struct {
	kind             Kind
	outW, outH, outD int

	in, out *volume.Volume
}

func newActivation(cfg Config) (Layer, error) {
	switch cfg.Kind {
	case ReLU, Sigmoid, Tanh:
		return &actLayer{kind: cfg.Kind}, nil
	}
	return nil, fmt.Errorf("layer: %s is not a pointwise activation", cfg.Kind)
}

func (l *actLayer) Kind() Kind { return l.kind }

func (l *actLayer) Init(inWidth, inHeight, inDepth int) error {
	if inWidth <= 0 || inHeight <= 0 || inDepth <= 0 {
		return fmt.Errorf("layer: %s got invalid input dimensions %dx%dx%d", l.kind, inWidth, inHeight, inDepth)
	}
	l.outW, l.outH, l.outD = inWidth, inHeight, inDepth
	return nil
}

func (l *actLayer) OutWidth() int  { return l.outW }
func (l *actLayer) OutHeight() int { return l.outH }
func (l *actLayer) OutDepth() int  { return l.outD }

func (l *actLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	l.in = in
	out := in.CloneAndZero()
	switch l.kind {
	case ReLU:
		for i, x := range in.Data {
			if x > 0 {
				out.Data[i] = x
			}
		}
	case Sigmoid:
		for i, x := range in.Data {
			out.Data[i] = 1 / (1 + math.Exp(-x))
		}
	case Tanh:
		for i, x := range in.Data {
			out.Data[i] = math.Tanh(x)
		}
	}
	l.out = out
	return out
}

func (l *actLayer) Backward() {
	if l.in == nil {
		panic(fmt.Sprintf("layer: %s backward before forward", l.kind))
	}
	in, out := l.in, l.out
	switch l.kind {
	case ReLU:
		for i := range in.Grad {
			if out.Data[i] <= 0 {
				in.Grad[i] = 0
			} else {
				in.Grad[i] = out.Grad[i]
			}
		}
	case Sigmoid:
		for i := range in.Grad {
			s := out.Data[i]
			in.Grad[i] = s * (1 - s) * out.Grad[i]
		}
	case Tanh:
		for i := range in.Grad {
			th := out.Data[i]
			in.Grad[i] = (1 - th*th) * out.Grad[i]
		}
	}
}

func (l *actLayer) Output() *volume.Volume { return l.out }

func (l *actLayer) ParamsAndGrads() []ParamPair { return nil }

func (l *actLayer) Config() Config {
	return Config{Kind: l.kind}
}
