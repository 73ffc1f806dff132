// Package trainer drives gradient-descent training of a network with
// the Adadelta adaptive optimizer.
package trainer

import (
	"math"
	"time"

	"github.com/FlavioCFOliveira/GoConvNet/internal/layer"
	"github.com/FlavioCFOliveira/GoConvNet/internal/net"
	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// Config holds the training hyperparameters.
type Config struct {
	// BatchSize is the number of samples whose gradients are summed
	// before one parameter update is applied.
	BatchSize int

	// L1Decay and L2Decay are the weight-shrinkage coefficients.
	// Each parameter array scales them by its own decay multiplier,
	// so biases are exempt.
	L1Decay float64
	L2Decay float64

	// Ro is the Adadelta decay rate for the running averages of
	// squared gradients and squared updates.
	Ro float64

	// Eps is the numerical-stability constant inside the Adadelta
	// ratio.
	Eps float64
}

// DefaultConfig returns the conventional Adadelta settings: batch size
// 1, no decay, ro 0.95, eps 1e-6.
func DefaultConfig() Config {
	return Config{BatchSize: 1, L2Decay: 0, Ro: 0.95, Eps: 1e-6}
}

// Result reports one training step.
type Result struct {
	// CostLoss is the loss returned by the terminal loss layer.
	CostLoss float64

	// L1DecayLoss and L2DecayLoss are the decay penalties accumulated
	// during the update of this step, zero on steps that apply no
	// update.
	L1DecayLoss float64
	L2DecayLoss float64

	// Loss is CostLoss plus both decay penalties.
	Loss float64

	// ForwardTime and BackwardTime are the elapsed times of the two
	// phases, for diagnostics.
	ForwardTime  time.Duration
	BackwardTime time.Duration
}

// Trainer binds a network to the Adadelta update rule. It shares the
// network; the network outlives the trainer and may later be driven by
// a new one. Not safe for concurrent use.
type Trainer struct {
	net *net.Net
	cfg Config

	step int

	// Running averages of squared gradient and squared update, one
	// slice per parameter array, allocated on the first update.
	gsum [][]float64
	xsum [][]float64
}

// New creates a trainer for n. Zero-valued config fields fall back to
// the defaults.
func New(n *net.Net, cfg Config) *Trainer {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Ro == 0 {
		cfg.Ro = def.Ro
	}
	if cfg.Eps == 0 {
		cfg.Eps = def.Eps
	}
	return &Trainer{net: n, cfg: cfg}
}

// Train runs one training step on a single sample: forward, backward
// from the target, and, on every BatchSize-th call, an Adadelta
// parameter update over the gradients accumulated since the last
// update.
func (t *Trainer) Train(x *volume.Volume, y layer.Target) (Result, error) {
	start := time.Now()
	t.net.Forward(x, true)
	fwd := time.Since(start)

	start = time.Now()
	cost, err := t.net.Backward(y)
	if err != nil {
		return Result{}, err
	}
	bwd := time.Since(start)

	t.step++
	var l1Loss, l2Loss float64
	if t.step%t.cfg.BatchSize == 0 {
		l1Loss, l2Loss = t.applyUpdate()
	}

	return Result{
		CostLoss:     cost,
		L1DecayLoss:  l1Loss,
		L2DecayLoss:  l2Loss,
		Loss:         cost + l1Loss + l2Loss,
		ForwardTime:  fwd,
		BackwardTime: bwd,
	}, nil
}

// applyUpdate performs the Adadelta update over every parameter array
// and zeroes the accumulated gradients. Returns the L1 and L2 decay
// losses.
func (t *Trainer) applyUpdate() (l1Loss, l2Loss float64) {
	pairs := t.net.ParamsAndGrads()
	if t.gsum == nil {
		t.gsum = make([][]float64, len(pairs))
		t.xsum = make([][]float64, len(pairs))
		for i, pg := range pairs {
			t.gsum[i] = make([]float64, len(pg.Params))
			t.xsum[i] = make([]float64, len(pg.Params))
		}
	}
	if len(t.gsum) != len(pairs) {
		panic("trainer: network parameter layout changed mid-training")
	}

	ro, eps := t.cfg.Ro, t.cfg.Eps
	batch := float64(t.cfg.BatchSize)

	for i, pg := range pairs {
		gsum, xsum := t.gsum[i], t.xsum[i]
		l1 := t.cfg.L1Decay * pg.DecayMul
		l2 := t.cfg.L2Decay * pg.DecayMul
		for j := range pg.Params {
			p := pg.Params[j]
			l1Loss += l1 * math.Abs(p)
			l2Loss += 0.5 * l2 * p * p

			l1grad := l1
			if p < 0 {
				l1grad = -l1
			}
			g := pg.Grads[j]/batch + l2*p + l1grad
			gsum[j] = ro*gsum[j] + (1-ro)*g*g
			dx := -math.Sqrt((xsum[j]+eps)/(gsum[j]+eps)) * g
			xsum[j] = ro*xsum[j] + (1-ro)*dx*dx
			pg.Params[j] = p + dx

			pg.Grads[j] = 0
		}
	}
	return l1Loss, l2Loss
}
