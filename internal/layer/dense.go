package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// denseLayer is a fully connected layer: one weighted sum over the
// flattened input per output neuron, plus a bias. Output shape is
// 1x1xneurons.
type denseLayer struct {
	neurons  int
	biasPref float64
	inCount  int

	weights []*volume.Volume // one 1x1xinCount column per neuron
	biases  *volume.Volume   // 1x1xneurons

	in, out *volume.Volume
}

func newDense(cfg Config) (Layer, error) {
	if cfg.Neurons <= 0 {
		return nil, fmt.Errorf("layer: dense needs a positive neuron count, got %d", cfg.Neurons)
	}
	return &denseLayer{neurons: cfg.Neurons, biasPref: cfg.BiasPref}, nil
}

func (l *denseLayer) Kind() Kind { return Dense }

func (l *denseLayer) Init(inWidth, inHeight, inDepth int) error {
	if inWidth <= 0 || inHeight <= 0 || inDepth <= 0 {
		return fmt.Errorf("layer: dense got invalid input dimensions %dx%dx%d", inWidth, inHeight, inDepth)
	}
	l.inCount = inWidth * inHeight * inDepth
	if l.weights == nil {
		l.weights = make([]*volume.Volume, l.neurons)
		for i := range l.weights {
			l.weights[i] = volume.NewRandom(1, 1, l.inCount)
		}
		l.biases = volume.New(1, 1, l.neurons, l.biasPref)
	}
	return nil
}

func (l *denseLayer) OutWidth() int  { return 1 }
func (l *denseLayer) OutHeight() int { return 1 }
func (l *denseLayer) OutDepth() int  { return l.neurons }

func (l *denseLayer) Forward(in *volume.Volume, training bool) *volume.Volume {
	if in.Len() != l.inCount {
		panic(fmt.Sprintf("layer: dense expects %d inputs, got %d", l.inCount, in.Len()))
	}
	l.in = in
	out := volume.New(1, 1, l.neurons, 0)
	for i := 0; i < l.neurons; i++ {
		sum := l.biases.Data[i]
		w := l.weights[i].Data
		for j := 0; j < l.inCount; j++ {
			sum += w[j] * in.Data[j]
		}
		out.Data[i] = sum
	}
	l.out = out
	return out
}

func (l *denseLayer) Backward() {
	if l.in == nil {
		panic("layer: dense backward before forward")
	}
	in := l.in
	in.ZeroGrad()
	for i := 0; i < l.neurons; i++ {
		chain := l.out.Grad[i]
		w := l.weights[i]
		for j := 0; j < l.inCount; j++ {
			in.Grad[j] += w.Data[j] * chain
			w.Grad[j] += in.Data[j] * chain
		}
		l.biases.Grad[i] += chain
	}
}

func (l *denseLayer) Output() *volume.Volume { return l.out }

func (l *denseLayer) ParamsAndGrads() []ParamPair {
	pairs := make([]ParamPair, 0, l.neurons+1)
	for _, w := range l.weights {
		pairs = append(pairs, ParamPair{Params: w.Data, Grads: w.Grad, DecayMul: 1})
	}
	pairs = append(pairs, ParamPair{Params: l.biases.Data, Grads: l.biases.Grad, DecayMul: 0})
	return pairs
}

func (l *denseLayer) Config() Config {
	return Config{Kind: Dense, Neurons: l.neurons, BiasPref: l.biasPref}
}
