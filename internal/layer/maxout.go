package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// maxoutLayer groups the depth dimension into fixed-size groups and
// outputs the per-group maximum. The arg-max of each group is recorded
// during Forward so Backward can route the gradient to exactly that
// element; every other element of the group receives zero.
type maxoutLayer struct {
	groupSize        int
	outW, outH, outD int

	switches []int // flat input index of each group winner

	in, out *volume.Volume
}

func newMaxout(cfg Config) (Layer, error) {
	group := cfg.GroupSize
	if group == 0 {
		group = 2
	}
	if group < 2 {
		return nil, fmt.Errorf("layer: maxout group size %d must be at least 2", group)
	}
	return &maxoutLayer{groupSize: group}, nil
}

func (l *maxoutLayer) Kind() Kind { return Maxout }

func (l *maxoutLayer) Init(inWidth, inHeight, inDepth int) error {
	if inDepth%l.groupSize != 0 {
		return fmt.Errorf("layer: maxout group size %d does not divide input depth %d", l.groupSize, inDepth)
	}
	l.outW, l.outH = inWidth, inHeight
	l.outD = inDepth / l.groupSize
	l.switches = make([]int, l.outW*l.outH*l.outD)
	return nil
}

func (l *maxoutLayer) OutWidth() int  { return l.outW }
func (l *maxoutLayer) OutHeight() int { return l.outH }
func (l *maxoutLayer) OutDepth() int  { return l.outD }

func (l *maxoutLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	l.in = in
	out := volume.New(l.outW, l.outH, l.outD, 0)
	for y := 0; y < l.outH; y++ {
		for x := 0; x < l.outW; x++ {
			for d := 0; d < l.outD; d++ {
				base := in.Index(x, y, d*l.groupSize)
				winIdx := base
				winVal := in.Data[base]
				for k := 1; k < l.groupSize; k++ {
					if v := in.Data[base+k]; v > winVal {
						winVal = v
						winIdx = base + k
					}
				}
				oi := out.Index(x, y, d)
				out.Data[oi] = winVal
				l.switches[oi] = winIdx
			}
		}
	}
	l.out = out
	return out
}

func (l *maxoutLayer) Backward() {
	if l.in == nil {
		panic("layer: maxout backward before forward")
	}
	l.in.ZeroGrad()
	for oi, winIdx := range l.switches {
		l.in.Grad[winIdx] = l.out.Grad[oi]
	}
}

func (l *maxoutLayer) Output() *volume.Volume { return l.out }

func (l *maxoutLayer) ParamsAndGrads() []ParamPair { return nil }

func (l *maxoutLayer) Config() Config {
	return Config{Kind: Maxout, GroupSize: l.groupSize}
}
