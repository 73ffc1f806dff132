package net

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/FlavioCFOliveira/GoConvNet/internal/layer"
)

// Binary model format, little-endian throughout:
//
//	uint32 magic "GCN1"
//	uint32 version
//	uint32 layer count
//	per layer:
//	    uint32 kind tag
//	    config record (fixed schema, see configRecord)
//	    uint32 parameter array count
//	    per array: uint32 length, then length float64s
//
// The serialized list is the fully expanded layer list, so loading
// never re-runs AddLayer's wiring.
const (
	serialMagic   uint32 = 0x314E4347 // "GCN1"
	serialVersion uint32 = 1

	// Ceiling on any single serialized array, to reject corrupt or
	// adversarial files before allocating. 4M float64s is 32 MiB.
	maxArrayLen uint32 = 4 << 20

	maxLayerCount uint32 = 1 << 16
)

// configRecord is the fixed on-disk schema of a layer config. Every
// layer writes every field; unused fields are zero.
type configRecord struct {
	Width, Height, Depth      int32
	Filters                   int32
	KernelWidth, KernelHeight int32
	Stride, Pad               int32
	Neurons, Classes          int32
	GroupSize                 int32
	DropProb                  float64
	BiasPref                  float64
}

func recordFromConfig(cfg layer.Config) configRecord {
	return configRecord{
		Width:        int32(cfg.Width),
		Height:       int32(cfg.Height),
		Depth:        int32(cfg.Depth),
		Filters:      int32(cfg.Filters),
		KernelWidth:  int32(cfg.KernelWidth),
		KernelHeight: int32(cfg.KernelHeight),
		Stride:       int32(cfg.Stride),
		Pad:          int32(cfg.Pad),
		Neurons:      int32(cfg.Neurons),
		Classes:      int32(cfg.Classes),
		GroupSize:    int32(cfg.GroupSize),
		DropProb:     cfg.DropProb,
		BiasPref:     cfg.BiasPref,
	}
}

func (r configRecord) config(kind layer.Kind) layer.Config {
	return layer.Config{
		Kind:         kind,
		Width:        int(r.Width),
		Height:       int(r.Height),
		Depth:        int(r.Depth),
		Filters:      int(r.Filters),
		KernelWidth:  int(r.KernelWidth),
		KernelHeight: int(r.KernelHeight),
		Stride:       int(r.Stride),
		Pad:          int(r.Pad),
		Neurons:      int(r.Neurons),
		Classes:      int(r.Classes),
		GroupSize:    int(r.GroupSize),
		DropProb:     r.DropProb,
		BiasPref:     r.BiasPref,
	}
}

// Save writes the network to a file.
func (n *Net) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("net: save: %w", err)
	}
	defer file.Close()
	return n.SaveTo(file)
}

// SaveTo writes the full expanded layer list plus trained parameter
// values to w.
func (n *Net) SaveTo(w io.Writer) error {
	if err := writeLE(w, serialMagic, serialVersion, uint32(len(n.layers))); err != nil {
		return fmt.Errorf("net: save header: %w", err)
	}
	for i, l := range n.layers {
		if err := writeLE(w, uint32(l.Kind()), recordFromConfig(l.Config())); err != nil {
			return fmt.Errorf("net: save layer %d: %w", i, err)
		}
		pairs := l.ParamsAndGrads()
		if err := writeLE(w, uint32(len(pairs))); err != nil {
			return fmt.Errorf("net: save layer %d: %w", i, err)
		}
		for _, pg := range pairs {
			if err := writeLE(w, uint32(len(pg.Params)), pg.Params); err != nil {
				return fmt.Errorf("net: save layer %d params: %w", i, err)
			}
		}
	}
	return nil
}

// Load reads a network from a file written by Save.
func Load(filename string) (*Net, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("net: load: %w", err)
	}
	defer file.Close()
	return LoadFrom(file)
}

// LoadFrom reconstructs a network from r. Any malformed, truncated or
// oversized record fails the whole load; no partial net is returned.
func LoadFrom(r io.Reader) (*Net, error) {
	var magic, version, count uint32
	if err := readLE(r, &magic, &version, &count); err != nil {
		return nil, fmt.Errorf("net: load header: %w", err)
	}
	if magic != serialMagic {
		return nil, fmt.Errorf("net: load: bad magic %#x", magic)
	}
	if version != serialVersion {
		return nil, fmt.Errorf("net: load: unsupported version %d", version)
	}
	if count == 0 || count > maxLayerCount {
		return nil, fmt.Errorf("net: load: unreasonable layer count %d", count)
	}

	n := New()
	for i := uint32(0); i < count; i++ {
		var kind uint32
		var rec configRecord
		if err := readLE(r, &kind, &rec); err != nil {
			return nil, fmt.Errorf("net: load layer %d: %w", i, err)
		}
		l, err := layer.New(rec.config(layer.Kind(kind)))
		if err != nil {
			return nil, fmt.Errorf("net: load layer %d: %w", i, err)
		}
		if i == 0 && l.Kind() != layer.Input {
			return nil, fmt.Errorf("net: load: first layer is %s, want input", l.Kind())
		}
		if err := n.initAndAppend(l); err != nil {
			return nil, fmt.Errorf("net: load layer %d: %w", i, err)
		}

		var pairCount uint32
		if err := readLE(r, &pairCount); err != nil {
			return nil, fmt.Errorf("net: load layer %d: %w", i, err)
		}
		pairs := l.ParamsAndGrads()
		if int(pairCount) != len(pairs) {
			return nil, fmt.Errorf("net: load layer %d: %d parameter arrays on disk, layer has %d",
				i, pairCount, len(pairs))
		}
		for j, pg := range pairs {
			var arrLen uint32
			if err := readLE(r, &arrLen); err != nil {
				return nil, fmt.Errorf("net: load layer %d array %d: %w", i, j, err)
			}
			if arrLen > maxArrayLen {
				return nil, fmt.Errorf("net: load layer %d array %d: length %d exceeds limit %d",
					i, j, arrLen, maxArrayLen)
			}
			if int(arrLen) != len(pg.Params) {
				return nil, fmt.Errorf("net: load layer %d array %d: length %d, layer wants %d",
					i, j, arrLen, len(pg.Params))
			}
			if err := readLE(r, pg.Params); err != nil {
				return nil, fmt.Errorf("net: load layer %d array %d: %w", i, j, err)
			}
		}
	}
	return n, nil
}

func writeLE(w io.Writer, vals ...interface{}) error {
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readLE(r io.Reader, dsts ...interface{}) error {
	for _, d := range dsts {
		if err := binary.Read(r, binary.LittleEndian, d); err != nil {
			return err
		}
	}
	return nil
}
