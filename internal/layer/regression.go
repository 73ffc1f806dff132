package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// regressionLayer is the regression loss layer. Forward passes the raw
// scores through unchanged; BackwardLoss seeds the gradient with
// prediction - target and returns half the squared error.
type regressionLayer struct {
	neurons int

	in, out *volume.Volume
}

func newRegression(cfg Config) (Layer, error) {
	if cfg.Neurons <= 0 {
		return nil, fmt.Errorf("layer: regression needs a positive neuron count, got %d", cfg.Neurons)
	}
	return &regressionLayer{neurons: cfg.Neurons}, nil
}

func (l *regressionLayer) Kind() Kind { return Regression }

func (l *regressionLayer) Init(inWidth, inHeight, inDepth int) error {
	if n := inWidth * inHeight * inDepth; n != l.neurons {
		return fmt.Errorf("layer: regression over %d outputs got %d inputs", l.neurons, n)
	}
	return nil
}

func (l *regressionLayer) OutWidth() int  { return 1 }
func (l *regressionLayer) OutHeight() int { return 1 }
func (l *regressionLayer) OutDepth() int  { return l.neurons }

func (l *regressionLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	if in.Len() != l.neurons {
		panic(fmt.Sprintf("layer: regression expects %d inputs, got %d", l.neurons, in.Len()))
	}
	l.in = in
	l.out = in
	return in
}

// Backward without a target is meaningless for a loss layer; the net
// drives this layer through BackwardLoss instead.
func (l *regressionLayer) Backward() {
	panic("layer: regression backward requires a target, use BackwardLoss")
}

// BackwardLoss seeds the input gradient with prediction - target and
// returns the loss 0.5 * sum(diff^2).
func (l *regressionLayer) BackwardLoss(t Target) (float64, error) {
	if l.in == nil {
		panic("layer: regression backward before forward")
	}
	if !t.IsVec() {
		return 0, fmt.Errorf("layer: regression needs a vector target, got class %d", t.ClassIndex())
	}
	y := t.Values()
	if len(y) != l.neurons {
		return 0, fmt.Errorf("layer: regression target has %d entries, want %d", len(y), l.neurons)
	}
	in := l.in
	in.ZeroGrad()
	loss := 0.0
	for i := range y {
		dy := in.Data[i] - y[i]
		in.Grad[i] = dy
		loss += 0.5 * dy * dy
	}
	return loss, nil
}

func (l *regressionLayer) Output() *volume.Volume { return l.out }

func (l *regressionLayer) ParamsAndGrads() []ParamPair { return nil }

func (l *regressionLayer) Config() Config {
	return Config{Kind: Regression, Neurons: l.neurons}
}
