// Package main - digit classification on a synthetic MNIST-like dataset.
//
// Usage:
//
//	go run cmd/mnist/main.go
//
// The example:
// 1. Generates synthetic 28x28 digit images (10 classes)
// 2. Trains a small convolutional network with random 24x24 crops
// 3. Evaluates with averaged multi-crop inference
// 4. Saves the model, reloads it and verifies the accuracy survives
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/FlavioCFOliveira/GoConvNet/goconvnet"
)

const (
	imageSize = 28
	cropSize  = 24
	classes   = 10

	trainSteps = 4000
	testCount  = 200
)

func main() {
	fmt.Println("=============================================================")
	fmt.Println("  GoConvNet - Synthetic Digit Classification (CNN)")
	fmt.Println("=============================================================")
	fmt.Println()

	rng := rand.New(rand.NewSource(42))

	fmt.Println("--- Step 1: Building the Network ---")
	n := goconvnet.NewNet()
	err := n.AddLayers(
		goconvnet.Input(cropSize, cropSize, 1),
		goconvnet.Conv(5, 8, 1, 2, goconvnet.ReLU),
		goconvnet.Conv(5, 12, 2, 2, goconvnet.ReLU),
		goconvnet.Dense(32, goconvnet.Tanh),
		goconvnet.Dropout(0.25),
		goconvnet.Softmax(classes),
	)
	if err != nil {
		log.Fatalf("build network: %v", err)
	}
	for i, l := range n.Layers() {
		fmt.Printf("  layer %d: %-8s -> %dx%dx%d\n",
			i, l.Kind(), l.OutWidth(), l.OutHeight(), l.OutDepth())
	}
	fmt.Println()

	fmt.Println("--- Step 2: Training with Random Crops ---")
	tr := goconvnet.NewTrainer(n, goconvnet.TrainerConfig{
		BatchSize: 20,
		L2Decay:   0.001,
	})

	correct := 0
	window := 0
	for step := 1; step <= trainSteps; step++ {
		class := rng.Intn(classes)
		img := syntheticDigit(rng, class)
		x := img.AugmentRandom(rng, cropSize)

		if n.Forward(x, false).MaxIndex() == class {
			correct++
		}
		window++

		if _, err := tr.Train(x, goconvnet.Class(class)); err != nil {
			log.Fatalf("train step %d: %v", step, err)
		}

		if step%500 == 0 {
			fmt.Printf("  step %4d: windowed accuracy %.1f%%\n",
				step, 100*float64(correct)/float64(window))
			correct, window = 0, 0
		}
	}
	fmt.Println()

	fmt.Println("--- Step 3: Multi-Crop Evaluation ---")
	acc := evaluate(n, rng)
	fmt.Printf("  test accuracy over %d samples: %.1f%%\n", testCount, 100*acc)
	fmt.Println()

	fmt.Println("--- Step 4: Save and Reload ---")
	path := filepath.Join(os.TempDir(), "digits.bin")
	if err := n.Save(path); err != nil {
		log.Fatalf("save model: %v", err)
	}
	fmt.Printf("  model saved to %s\n", path)

	loaded, err := goconvnet.Load(path)
	if err != nil {
		log.Fatalf("load model: %v", err)
	}
	accLoaded := evaluate(loaded, rng)
	fmt.Printf("  reloaded model accuracy: %.1f%%\n", 100*accLoaded)
}

// evaluate classifies fresh samples, averaging the class distribution
// over the center crop and three random crops of each image.
func evaluate(n *goconvnet.Net, rng *rand.Rand) float64 {
	correct := 0
	for i := 0; i < testCount; i++ {
		class := rng.Intn(classes)
		img := syntheticDigit(rng, class)

		avg := n.Forward(img.AugmentCenter(cropSize), false).Clone()
		for c := 0; c < 3; c++ {
			avg.AccumulateFrom(n.Forward(img.AugmentRandom(rng, cropSize), false))
		}
		avg.Scale(1.0 / 4)

		if avg.MaxIndex() == class {
			correct++
		}
	}
	return float64(correct) / float64(testCount)
}

// syntheticDigit draws a bright 8x8 block whose grid position encodes
// the class, over a noisy background. Crude, but it gives the conv
// layers real spatial structure to latch onto.
func syntheticDigit(rng *rand.Rand, class int) *goconvnet.Volume {
	v := goconvnet.NewVolume(imageSize, imageSize, 1, 0)
	bx := 2 + (class%4)*6
	by := 2 + (class/4)*6
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			val := 0.1 * rng.Float64()
			if x >= bx && x < bx+8 && y >= by && y < by+8 {
				val += 0.9
			}
			v.Set(x, y, 0, val)
		}
	}
	return v
}
