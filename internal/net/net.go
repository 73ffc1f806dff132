// Package net composes layers into a trainable feed-forward network.
package net

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/layer"
	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// Net is an ordered stack of layers. The stored list is always fully
// expanded: AddLayer materializes requested activation and dropout
// layers (and the fully-connected layer a loss layer needs) as real
// entries, so what gets serialized is exactly what runs.
//
// Mutation is additive only; layers are never removed or reordered.
// A Net is not safe for concurrent use.
type Net struct {
	layers []layer.Layer
}

// New creates an empty network. The first layer added must be an Input
// layer.
func New() *Net {
	return &Net{}
}

// AddLayers adds a sequence of layer configs, stopping at the first
// failure.
func (n *Net) AddLayers(cfgs ...layer.Config) error {
	for _, cfg := range cfgs {
		if err := n.AddLayer(cfg); err != nil {
			return err
		}
	}
	return nil
}

// AddLayer appends the layer described by cfg, enforcing the topology
// rules and expanding wiring requests:
//
//   - the first layer must be an Input layer, and only the first;
//   - a loss layer must follow a fully-connected layer with exactly the
//     class/neuron count it declares; if the current tail is not
//     fully-connected one is inserted automatically, but an existing
//     mismatched one is a construction error;
//   - a ReLU activation request bumps the layer's initial bias to a
//     small positive value so units start active;
//   - a requested activation layer, then a requested dropout layer, are
//     appended right after the layer itself.
func (n *Net) AddLayer(cfg layer.Config) error {
	if len(n.layers) == 0 {
		if cfg.Kind != layer.Input {
			return fmt.Errorf("net: first layer must be input, got %s", cfg.Kind)
		}
	} else if cfg.Kind == layer.Input {
		return fmt.Errorf("net: input layer must be first")
	}

	if cfg.Kind.IsLoss() {
		want := cfg.Classes
		if cfg.Kind == layer.Regression {
			want = cfg.Neurons
		}
		if want <= 0 {
			return fmt.Errorf("net: %s layer needs a positive output count", cfg.Kind)
		}
		prev := n.layers[len(n.layers)-1]
		if prev.Kind() != layer.Dense {
			if err := n.AddLayer(layer.Config{Kind: layer.Dense, Neurons: want}); err != nil {
				return err
			}
		} else if prev.OutDepth() != want {
			return fmt.Errorf("net: %s expects the preceding fully-connected layer to have %d neurons, it has %d",
				cfg.Kind, want, prev.OutDepth())
		}
	}

	if cfg.Activation != 0 && !cfg.Activation.IsActivation() {
		return fmt.Errorf("net: %s is not an activation kind", cfg.Activation)
	}
	if cfg.Activation == layer.ReLU && cfg.BiasPref == 0 {
		// Units behind a relu die permanently when they start
		// negative; a small positive bias lowers that chance.
		cfg.BiasPref = 0.1
	}

	l, err := layer.New(cfg)
	if err != nil {
		return err
	}
	if err := n.initAndAppend(l); err != nil {
		return err
	}

	if cfg.Activation != 0 && cfg.Kind != cfg.Activation {
		act, err := layer.New(layer.Config{Kind: cfg.Activation, GroupSize: cfg.GroupSize})
		if err != nil {
			return err
		}
		if err := n.initAndAppend(act); err != nil {
			return err
		}
	}

	if cfg.DropProb > 0 && cfg.Kind != layer.Dropout {
		drop, err := layer.New(layer.Config{Kind: layer.Dropout, DropProb: cfg.DropProb})
		if err != nil {
			return err
		}
		if err := n.initAndAppend(drop); err != nil {
			return err
		}
	}

	return nil
}

// initAndAppend fixes the layer's dimensions from the current tail and
// appends it. The input layer carries its own dimensions and is not
// initialized.
func (n *Net) initAndAppend(l layer.Layer) error {
	if len(n.layers) > 0 {
		tail := n.layers[len(n.layers)-1]
		if err := l.Init(tail.OutWidth(), tail.OutHeight(), tail.OutDepth()); err != nil {
			return err
		}
	}
	n.layers = append(n.layers, l)
	return nil
}

// Forward runs v through every layer in order and returns the final
// layer's output. Each layer caches its forward state for the next
// Backward call.
func (n *Net) Forward(v *volume.Volume, training bool) *volume.Volume {
	if len(n.layers) == 0 {
		panic("net: forward on an empty net")
	}
	out := v
	for _, l := range n.layers {
		out = l.Forward(out, training)
	}
	return out
}

// Backward drives one full backward sweep: the terminal loss layer
// consumes the target and seeds the gradient, then every remaining
// layer propagates it in reverse order. The input layer receives
// gradient but does not propagate further. Returns the scalar loss.
func (n *Net) Backward(t layer.Target) (float64, error) {
	if len(n.layers) == 0 {
		return 0, fmt.Errorf("net: backward on an empty net")
	}
	tail := n.layers[len(n.layers)-1]
	loss, ok := tail.(layer.LossLayer)
	if !ok {
		return 0, fmt.Errorf("net: terminal layer %s is not a loss layer", tail.Kind())
	}
	cost, err := loss.BackwardLoss(t)
	if err != nil {
		return 0, err
	}
	for i := len(n.layers) - 2; i > 0; i-- {
		n.layers[i].Backward()
	}
	return cost, nil
}

// Prediction returns the index of the maximum-probability class from
// the terminal softmax layer's most recent output.
func (n *Net) Prediction() (int, error) {
	if len(n.layers) == 0 {
		return 0, fmt.Errorf("net: prediction on an empty net")
	}
	tail := n.layers[len(n.layers)-1]
	if tail.Kind() != layer.Softmax {
		return 0, fmt.Errorf("net: prediction requires a softmax terminal layer, got %s", tail.Kind())
	}
	out := tail.Output()
	if out == nil {
		return 0, fmt.Errorf("net: prediction before any forward pass")
	}
	return out.MaxIndex(), nil
}

// ParamsAndGrads concatenates every layer's parameter/gradient pairs in
// layer order. The order is stable across calls, which the optimizer
// relies on to address its per-parameter state.
func (n *Net) ParamsAndGrads() []layer.ParamPair {
	var pairs []layer.ParamPair
	for _, l := range n.layers {
		pairs = append(pairs, l.ParamsAndGrads()...)
	}
	return pairs
}

// Layers returns the expanded layer list for inspection.
func (n *Net) Layers() []layer.Layer {
	return n.layers
}
