package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// inputLayer fixes the network's input shape and passes volumes through
// untouched. It is always the first layer of a net and its dimensions
// come from its own config, so Init is a no-op.
type inputLayer struct {
	outW, outH, outD int

	out *volume.Volume
}

func newInput(cfg Config) (Layer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Depth <= 0 {
		return nil, fmt.Errorf("layer: input dimensions %dx%dx%d must be positive", cfg.Width, cfg.Height, cfg.Depth)
	}
	return &inputLayer{outW: cfg.Width, outH: cfg.Height, outD: cfg.Depth}, nil
}

func (l *inputLayer) Kind() Kind { return Input }

func (l *inputLayer) Init(inWidth, inHeight, inDepth int) error {
	return nil
}

func (l *inputLayer) OutWidth() int  { return l.outW }
func (l *inputLayer) OutHeight() int { return l.outH }
func (l *inputLayer) OutDepth() int  { return l.outD }

func (l *inputLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	if in.Width != l.outW || in.Height != l.outH || in.Depth != l.outD {
		panic(fmt.Sprintf("layer: input expects %dx%dx%d, got %dx%dx%d",
			l.outW, l.outH, l.outD, in.Width, in.Height, in.Depth))
	}
	l.out = in
	return l.out
}

func (l *inputLayer) Backward() {}

func (l *inputLayer) Output() *volume.Volume { return l.out }

func (l *inputLayer) ParamsAndGrads() []ParamPair { return nil }

func (l *inputLayer) Config() Config {
	return Config{Kind: Input, Width: l.outW, Height: l.outH, Depth: l.outD}
}
