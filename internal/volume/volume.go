// Package volume provides the dense 3-D tensor passed between network layers.
package volume

import (
	"fmt"
	"math"
	"math/rand"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Volume is a width x height x depth tensor carrying an activation buffer
// (Data) and a same-sized gradient buffer (Grad).
//
// The flat index convention is depth-minor: ((y*Width)+x)*Depth + d.
// Every layer relies on this layout.
type Volume struct {
	Width  int
	Height int
	Depth  int

	Data []float64
	Grad []float64
}

// Deterministic source for weight initialization, so freshly built
// networks are reproducible run to run.
var initSrc = exprand.NewSource(42)

// New creates a volume with every activation set to fill and a
// zero-initialized gradient buffer.
func New(width, height, depth int, fill float64) *Volume {
	if width <= 0 || height <= 0 || depth <= 0 {
		panic(fmt.Sprintf("volume: invalid dimensions %dx%dx%d", width, height, depth))
	}
	n := width * height * depth
	v := &Volume{
		Width:  width,
		Height: height,
		Depth:  depth,
		Data:   make([]float64, n),
		Grad:   make([]float64, n),
	}
	if fill != 0 {
		for i := range v.Data {
			v.Data[i] = fill
		}
	}
	return v
}

// NewRandom creates a volume with activations drawn from a Gaussian
// scaled by sqrt(1/n), the usual weight initialization for a unit
// receiving n inputs.
func NewRandom(width, height, depth int) *Volume {
	v := New(width, height, depth, 0)
	dist := distuv.Normal{
		Mu:    0,
		Sigma: math.Sqrt(1.0 / float64(len(v.Data))),
		Src:   initSrc,
	}
	for i := range v.Data {
		v.Data[i] = dist.Rand()
	}
	return v
}

// FromSlice creates a 1x1xlen(data) volume with a copy of data as
// activations.
func FromSlice(data []float64) *Volume {
	v := New(1, 1, len(data), 0)
	copy(v.Data, data)
	return v
}

// Len returns the number of elements in each buffer.
func (v *Volume) Len() int {
	return len(v.Data)
}

// Index returns the flat index of position (x, y, d).
func (v *Volume) Index(x, y, d int) int {
	return (y*v.Width+x)*v.Depth + d
}

// Get returns the activation at (x, y, d).
func (v *Volume) Get(x, y, d int) float64 {
	return v.Data[v.Index(x, y, d)]
}

// Set stores an activation at (x, y, d).
func (v *Volume) Set(x, y, d int, val float64) {
	v.Data[v.Index(x, y, d)] = val
}

// Add accumulates into the activation at (x, y, d).
func (v *Volume) Add(x, y, d int, val float64) {
	v.Data[v.Index(x, y, d)] += val
}

// GetGrad returns the gradient at (x, y, d).
func (v *Volume) GetGrad(x, y, d int) float64 {
	return v.Grad[v.Index(x, y, d)]
}

// SetGrad stores a gradient at (x, y, d).
func (v *Volume) SetGrad(x, y, d int, val float64) {
	v.Grad[v.Index(x, y, d)] = val
}

// AddGrad accumulates into the gradient at (x, y, d).
func (v *Volume) AddGrad(x, y, d int, val float64) {
	v.Grad[v.Index(x, y, d)] += val
}

// ZeroGrad resets the gradient buffer to zero. Layers call this on
// their input at the start of each backward pass; gradients are never
// carried over between passes.
func (v *Volume) ZeroGrad() {
	for i := range v.Grad {
		v.Grad[i] = 0
	}
}

// Clone returns a volume with the same dimensions and a copy of the
// activations. The gradient buffer of the clone is zero.
func (v *Volume) Clone() *Volume {
	out := New(v.Width, v.Height, v.Depth, 0)
	copy(out.Data, v.Data)
	return out
}

// CloneAndZero returns a zero-filled volume with the same dimensions.
func (v *Volume) CloneAndZero() *Volume {
	return New(v.Width, v.Height, v.Depth, 0)
}

// AccumulateFrom sums the activations of other into v element-wise.
// Used to average several forward passes for test-time augmentation.
func (v *Volume) AccumulateFrom(other *Volume) {
	if len(other.Data) != len(v.Data) {
		panic(fmt.Sprintf("volume: accumulate size mismatch %d != %d", len(other.Data), len(v.Data)))
	}
	for i := range v.Data {
		v.Data[i] += other.Data[i]
	}
}

// Scale multiplies every activation by s.
func (v *Volume) Scale(s float64) {
	for i := range v.Data {
		v.Data[i] *= s
	}
}

// MaxIndex returns the flat index of the largest activation.
func (v *Volume) MaxIndex() int {
	maxIdx := 0
	maxVal := v.Data[0]
	for i := 1; i < len(v.Data); i++ {
		if v.Data[i] > maxVal {
			maxVal = v.Data[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// Augment returns a crop x crop window of v taken at offset (dx, dy),
// optionally flipped horizontally. Depth is preserved. If the window
// covers the whole volume and no flip is requested, v itself is
// returned unchanged.
func (v *Volume) Augment(crop, dx, dy int, flip bool) *Volume {
	if crop == v.Width && crop == v.Height && dx == 0 && dy == 0 && !flip {
		return v
	}
	if crop > v.Width || crop > v.Height {
		panic(fmt.Sprintf("volume: crop %d larger than source %dx%d", crop, v.Width, v.Height))
	}
	if dx < 0 || dy < 0 || dx+crop > v.Width || dy+crop > v.Height {
		panic(fmt.Sprintf("volume: crop offset (%d,%d) out of range", dx, dy))
	}
	out := New(crop, crop, v.Depth, 0)
	for y := 0; y < crop; y++ {
		for x := 0; x < crop; x++ {
			sx := dx + x
			if flip {
				sx = dx + crop - 1 - x
			}
			for d := 0; d < v.Depth; d++ {
				out.Set(x, y, d, v.Get(sx, dy+y, d))
			}
		}
	}
	return out
}

// AugmentRandom crops a random crop x crop window and flips it
// horizontally half the time. Used by training samplers.
func (v *Volume) AugmentRandom(rng *rand.Rand, crop int) *Volume {
	dx := rng.Intn(v.Width - crop + 1)
	dy := rng.Intn(v.Height - crop + 1)
	return v.Augment(crop, dx, dy, rng.Intn(2) == 0)
}

// AugmentCenter crops the centered crop x crop window without flipping.
// Used for deterministic inference.
func (v *Volume) AugmentCenter(crop int) *Volume {
	return v.Augment(crop, (v.Width-crop)/2, (v.Height-crop)/2, false)
}
