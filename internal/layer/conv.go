package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// convLayer slides a set of depth-column kernels over the input with
// configurable stride and zero padding. Each kernel produces one output
// depth slice; output spatial dimensions follow (W - K + 2P)/S + 1.
type convLayer struct {
	filters  int
	kernelW  int
	kernelH  int
	stride   int
	pad      int
	biasPref float64

	inW, inH, inD    int
	outW, outH, outD int

	kernels []*volume.Volume // each kernelW x kernelH x inD
	biases  *volume.Volume   // 1x1xfilters

	in, out *volume.Volume
}

func newConv(cfg Config) (Layer, error) {
	if cfg.Filters <= 0 {
		return nil, fmt.Errorf("layer: conv needs a positive filter count, got %d", cfg.Filters)
	}
	if cfg.KernelWidth <= 0 || cfg.KernelHeight <= 0 {
		return nil, fmt.Errorf("layer: conv kernel %dx%d must be positive", cfg.KernelWidth, cfg.KernelHeight)
	}
	stride := cfg.Stride
	if stride == 0 {
		stride = 1
	}
	if stride < 0 {
		return nil, fmt.Errorf("layer: conv stride %d must be positive", stride)
	}
	if cfg.Pad < 0 {
		return nil, fmt.Errorf("layer: conv padding %d must not be negative", cfg.Pad)
	}
	return &convLayer{
		filters:  cfg.Filters,
		kernelW:  cfg.KernelWidth,
		kernelH:  cfg.KernelHeight,
		stride:   stride,
		pad:      cfg.Pad,
		biasPref: cfg.BiasPref,
	}, nil
}

func (l *convLayer) Kind() Kind { return Conv }

func (l *convLayer) Init(inWidth, inHeight, inDepth int) error {
	outW := (inWidth-l.kernelW+2*l.pad)/l.stride + 1
	outH := (inHeight-l.kernelH+2*l.pad)/l.stride + 1
	if outW <= 0 || outH <= 0 {
		return fmt.Errorf("layer: conv %dx%d stride %d pad %d collapses %dx%d input",
			l.kernelW, l.kernelH, l.stride, l.pad, inWidth, inHeight)
	}
	l.inW, l.inH, l.inD = inWidth, inHeight, inDepth
	l.outW, l.outH, l.outD = outW, outH, l.filters

	// Parameter storage is allocated once; a repeated Init with the
	// same dimensions must not reroll the weights.
	if l.kernels == nil {
		l.kernels = make([]*volume.Volume, l.filters)
		for i := range l.kernels {
			l.kernels[i] = volume.NewRandom(l.kernelW, l.kernelH, inDepth)
		}
		l.biases = volume.New(1, 1, l.filters, l.biasPref)
	}
	return nil
}

func (l *convLayer) OutWidth() int  { return l.outW }
func (l *convLayer) OutHeight() int { return l.outH }
func (l *convLayer) OutDepth() int  { return l.outD }

func (l *convLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	if in.Width != l.inW || in.Height != l.inH || in.Depth != l.inD {
		panic(fmt.Sprintf("layer: conv expects %dx%dx%d input, got %dx%dx%d",
			l.inW, l.inH, l.inD, in.Width, in.Height, in.Depth))
	}
	l.in = in
	out := volume.New(l.outW, l.outH, l.outD, 0)

	for d := 0; d < l.filters; d++ {
		f := l.kernels[d]
		y := -l.pad
		for ay := 0; ay < l.outH; ay, y = ay+1, y+l.stride {
			x := -l.pad
			for ax := 0; ax < l.outW; ax, x = ax+1, x+l.stride {
				sum := 0.0
				for fy := 0; fy < l.kernelH; fy++ {
					oy := y + fy
					if oy < 0 || oy >= l.inH {
						continue
					}
					for fx := 0; fx < l.kernelW; fx++ {
						ox := x + fx
						if ox < 0 || ox >= l.inW {
							continue
						}
						fBase := (fy*l.kernelW + fx) * l.inD
						iBase := (oy*l.inW + ox) * l.inD
						for fd := 0; fd < l.inD; fd++ {
							sum += f.Data[fBase+fd] * in.Data[iBase+fd]
						}
					}
				}
				sum += l.biases.Data[d]
				out.Set(ax, ay, d, sum)
			}
		}
	}

	l.out = out
	return out
}

func (l *convLayer) Backward() {
	if l.in == nil {
		panic("layer: conv backward before forward")
	}
	in := l.in
	in.ZeroGrad()

	for d := 0; d < l.filters; d++ {
		f := l.kernels[d]
		y := -l.pad
		for ay := 0; ay < l.outH; ay, y = ay+1, y+l.stride {
			x := -l.pad
			for ax := 0; ax < l.outW; ax, x = ax+1, x+l.stride {
				chain := l.out.GetGrad(ax, ay, d)
				for fy := 0; fy < l.kernelH; fy++ {
					oy := y + fy
					if oy < 0 || oy >= l.inH {
						continue
					}
					for fx := 0; fx < l.kernelW; fx++ {
						ox := x + fx
						if ox < 0 || ox >= l.inW {
							continue
						}
						fBase := (fy*l.kernelW + fx) * l.inD
						iBase := (oy*l.inW + ox) * l.inD
						for fd := 0; fd < l.inD; fd++ {
							f.Grad[fBase+fd] += in.Data[iBase+fd] * chain
							in.Grad[iBase+fd] += f.Data[fBase+fd] * chain
						}
					}
				}
				l.biases.Grad[d] += chain
			}
		}
	}
}

func (l *convLayer) Output() *volume.Volume { return l.out }

func (l *convLayer) ParamsAndGrads() []ParamPair {
	pairs := make([]ParamPair, 0, l.filters+1)
	for _, f := range l.kernels {
		pairs = append(pairs, ParamPair{Params: f.Data, Grads: f.Grad, DecayMul: 1})
	}
	pairs = append(pairs, ParamPair{Params: l.biases.Data, Grads: l.biases.Grad, DecayMul: 0})
	return pairs
}

func (l *convLayer) Config() Config {
	return Config{
		Kind:         Conv,
		Filters:      l.filters,
		KernelWidth:  l.kernelW,
		KernelHeight: l.kernelH,
		Stride:       l.stride,
		Pad:          l.pad,
		BiasPref:     l.biasPref,
	}
}
