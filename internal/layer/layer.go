// Package layer provides the feed-forward network layer variants.
//
// Each variant implements the same two-phase contract: Forward consumes
// an input volume and produces an output volume whose dimensions were
// fixed by Init, and Backward distributes the gradient cached on the
// output volume back onto the input volume and onto the layer's own
// parameter gradients. All arithmetic is simple nested loops over flat
// float64 slices instead of an external matrix library, for cache
// locality and zero surprises.
package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// Kind identifies a layer variant. The numeric values are stable
// because they are written into serialized models.
type Kind uint32

const (
	Input Kind = iota + 1
	Conv
	Dense
	ReLU
	Sigmoid
	Tanh
	Maxout
	Dropout
	Softmax
	Regression
)

// String returns the lower-case variant name.
func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Conv:
		return "conv"
	case Dense:
		return "dense"
	case ReLU:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case Maxout:
		return "maxout"
	case Dropout:
		return "dropout"
	case Softmax:
		return "softmax"
	case Regression:
		return "regression"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// IsActivation reports whether k is one of the activation variants that
// a layer config may request as an automatic follow-up layer.
func (k Kind) IsActivation() bool {
	switch k {
	case ReLU, Sigmoid, Tanh, Maxout:
		return true
	}
	return false
}

// IsLoss reports whether k is a terminal loss variant.
func (k Kind) IsLoss() bool {
	return k == Softmax || k == Regression
}

// Config declares one logical layer. The zero value of a field means
// "not set"; each variant reads only the fields it understands.
//
// Activation and DropProb are wiring requests: when a non-activation,
// non-dropout layer carries them, the network builder expands them into
// dedicated follow-up layers. See net.AddLayer.
type Config struct {
	Kind Kind

	// Input dimensions, used by the Input variant only.
	Width  int
	Height int
	Depth  int

	// Conv.
	Filters      int
	KernelWidth  int
	KernelHeight int
	Stride       int
	Pad          int

	// Dense and Regression.
	Neurons int

	// Softmax.
	Classes int

	// Maxout.
	GroupSize int

	// Dropout probability. On a Dropout layer this is its own
	// probability; on any other layer it requests an automatic
	// Dropout layer right after it.
	DropProb float64

	// Activation requests an automatic activation layer right after
	// this one. Must satisfy Kind.IsActivation when non-zero.
	Activation Kind

	// BiasPref is the initial bias value for Conv and Dense layers.
	BiasPref float64
}

// ParamPair is one trainable parameter array paired with its gradient
// array. The optimizer addresses parameters exclusively through these.
type ParamPair struct {
	Params []float64
	Grads  []float64

	// DecayMul scales the trainer's L2 decay for this array. Weight
	// arrays carry 1, bias arrays carry 0 so decay never shrinks
	// biases toward zero.
	DecayMul float64
}

// Target is the ground truth handed to a terminal loss layer: either a
// class index or a dense target vector.
type Target struct {
	class int
	vec   []float64
}

// Class builds a classification target.
func Class(i int) Target {
	return Target{class: i}
}

// Vec builds a regression target, or a one-hot/distribution target for
// the softmax layer.
func Vec(xs []float64) Target {
	return Target{vec: xs}
}

// Val builds a one-dimensional regression target.
func Val(x float64) Target {
	return Vec([]float64{x})
}

// IsVec reports whether the target is a vector.
func (t Target) IsVec() bool {
	return t.vec != nil
}

// ClassIndex returns the class index of a non-vector target.
func (t Target) ClassIndex() int {
	return t.class
}

// Values returns the vector of a vector target, or nil.
func (t Target) Values() []float64 {
	return t.vec
}

// Layer is one stage of the network pipeline.
//
// A layer is created uncommitted; Init fixes its output dimensions from
// the previous layer's output dimensions and allocates parameter
// storage. Output dimensions are a pure function of input dimensions
// and configuration. Forward caches the input (and output) for the next
// Backward call; calling Backward before any Forward is a contract
// violation and panics.
type Layer interface {
	Kind() Kind
	Init(inWidth, inHeight, inDepth int) error

	OutWidth() int
	OutHeight() int
	OutDepth() int

	Forward(in *volume.Volume, training bool) *volume.Volume
	Backward()

	// Output returns the volume produced by the most recent Forward,
	// or nil before the first call.
	Output() *volume.Volume

	// ParamsAndGrads returns the layer's trainable parameter arrays
	// in a stable order. Layers without parameters return nil.
	ParamsAndGrads() []ParamPair

	// Config returns a config sufficient to reconstruct this layer
	// (wiring requests excluded; the expanded list is what persists).
	Config() Config
}

// LossLayer is the terminal-layer capability: it converts the cached
// forward output plus a target into a scalar loss and seeds the
// gradient for the backward sweep.
type LossLayer interface {
	Layer
	BackwardLoss(t Target) (float64, error)
}

// New constructs an uncommitted layer from cfg. Wiring requests on cfg
// are ignored here; they are the network builder's concern.
func New(cfg Config) (Layer, error) {
	switch cfg.Kind {
	case Input:
		return newInput(cfg)
	case Conv:
		return newConv(cfg)
	case Dense:
		return newDense(cfg)
	case ReLU, Sigmoid, Tanh:
		return newActivation(cfg)
	case Maxout:
		return newMaxout(cfg)
	case Dropout:
		return newDropout(cfg)
	case Softmax:
		return newSoftmax(cfg)
	case Regression:
		return newRegression(cfg)
	}
	return nil, fmt.Errorf("layer: unknown kind %s", cfg.Kind)
}
