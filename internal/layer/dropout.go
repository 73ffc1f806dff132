package layer

import (
	"fmt"
	"math/rand"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// dropoutLayer zeroes each activation independently with probability p
// during training and scales survivors by 1/(1-p), so inference needs
// no rescaling and is a plain identity. The mask of the most recent
// Forward is retained for the matching Backward.
type dropoutLayer struct {
	prob             float64
	outW, outH, outD int

	mask []bool
	rng  *rand.Rand

	in, out *volume.Volume
}

func newDropout(cfg Config) (Layer, error) {
	if cfg.DropProb < 0 || cfg.DropProb >= 1 {
		return nil, fmt.Errorf("layer: dropout probability %v must be in [0, 1)", cfg.DropProb)
	}
	prob := cfg.DropProb
	if prob == 0 {
		prob = 0.5
	}
	return &dropoutLayer{
		prob: prob,
		// Deterministic seed for reproducible training runs.
		rng: rand.New(rand.NewSource(42)),
	}, nil
}

func (l *dropoutLayer) Kind() Kind { return Dropout }

func (l *dropoutLayer) Init(inWidth, inHeight, inDepth int) error {
	if inWidth <= 0 || inHeight <= 0 || inDepth <= 0 {
		return fmt.Errorf("layer: dropout got invalid input dimensions %dx%dx%d", inWidth, inHeight, inDepth)
	}
	l.outW, l.outH, l.outD = inWidth, inHeight, inDepth
	l.mask = make([]bool, inWidth*inHeight*inDepth)
	return nil
}

func (l *dropoutLayer) OutWidth() int  { return l.outW }
func (l *dropoutLayer) OutHeight() int { return l.outH }
func (l *dropoutLayer) OutDepth() int  { return l.outD }

func (l *dropoutLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	l.in = in
	out := in.Clone()
	if training {
		scale := 1 / (1 - l.prob)
		for i := range out.Data {
			if l.rng.Float64() < l.prob {
				l.mask[i] = true
				out.Data[i] = 0
			} else {
				l.mask[i] = false
				out.Data[i] *= scale
			}
		}
	}
	l.out = out
	return out
}

func (l *dropoutLayer) Backward() {
	if l.in == nil {
		panic("layer: dropout backward before forward")
	}
	scale := 1 / (1 - l.prob)
	for i := range l.in.Grad {
		if l.mask[i] {
			l.in.Grad[i] = 0
		} else {
			l.in.Grad[i] = l.out.Grad[i] * scale
		}
	}
}

func (l *dropoutLayer) Output() *volume.Volume { return l.out }

func (l *dropoutLayer) ParamsAndGrads() []ParamPair { return nil }

func (l *dropoutLayer) Config() Config {
	return Config{Kind: Dropout, DropProb: l.prob}
}
