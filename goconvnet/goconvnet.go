// Package goconvnet is the public surface of the GoConvNet engine: a
// composable stack of feed-forward layers with forward inference,
// backward gradient propagation, an Adadelta trainer and binary model
// persistence.
package goconvnet

import (
	"github.com/FlavioCFOliveira/GoConvNet/internal/layer"
	"github.com/FlavioCFOliveira/GoConvNet/internal/net"
	"github.com/FlavioCFOliveira/GoConvNet/internal/trainer"
	"github.com/FlavioCFOliveira/GoConvNet/internal/volume"
)

// Re-export the core types for easier access.
type (
	Net           = net.Net
	Volume        = volume.Volume
	Layer         = layer.Layer
	LayerConfig   = layer.Config
	Target        = layer.Target
	Trainer       = trainer.Trainer
	TrainerConfig = trainer.Config
	TrainResult   = trainer.Result
)

// Network construction.
func NewNet() *Net {
	return net.New()
}

// Volumes.
func NewVolume(width, height, depth int, fill float64) *Volume {
	return volume.New(width, height, depth, fill)
}

func VolumeFromSlice(data []float64) *Volume {
	return volume.FromSlice(data)
}

// Layer configs. Each helper builds one logical layer; activation and
// dropout requests on the returned config are expanded by Net.AddLayer.
func Input(width, height, depth int) LayerConfig {
	return LayerConfig{Kind: layer.Input, Width: width, Height: height, Depth: depth}
}

func Conv(kernel, filters, stride, pad int, activation layer.Kind) LayerConfig {
	return LayerConfig{
		Kind:         layer.Conv,
		KernelWidth:  kernel,
		KernelHeight: kernel,
		Filters:      filters,
		Stride:       stride,
		Pad:          pad,
		Activation:   activation,
	}
}

func Dense(neurons int, activation layer.Kind) LayerConfig {
	return LayerConfig{Kind: layer.Dense, Neurons: neurons, Activation: activation}
}

func Dropout(prob float64) LayerConfig {
	return LayerConfig{Kind: layer.Dropout, DropProb: prob}
}

func Softmax(classes int) LayerConfig {
	return LayerConfig{Kind: layer.Softmax, Classes: classes}
}

func Regression(neurons int) LayerConfig {
	return LayerConfig{Kind: layer.Regression, Neurons: neurons}
}

// Activation kinds for layer requests.
const (
	ReLU    = layer.ReLU
	Sigmoid = layer.Sigmoid
	Tanh    = layer.Tanh
	Maxout  = layer.Maxout
)

// Targets.
func Class(i int) Target {
	return layer.Class(i)
}

func Vec(xs []float64) Target {
	return layer.Vec(xs)
}

func Val(x float64) Target {
	return layer.Val(x)
}

// Training.
func NewTrainer(n *Net, cfg TrainerConfig) *Trainer {
	return trainer.New(n, cfg)
}

// Persistence.
func Load(filename string) (*Net, error) {
	return net.Load(filename)
}
