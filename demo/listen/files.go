package main

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/natefinch/atomic"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/vmihailenco/msgpack/v5"
)

// FeatureBatch is a right-padded batch of feature
// sequences.
type FeatureBatch struct {
	// Features is indexed by sequence, timestep, and
	// feature.
	// Every sequence must have the same number of
	// timesteps.
	Features [][][]float64 `msgpack:"features"`

	Lengths []int `msgpack:"lengths"`
}

// Encoding is the result of encoding a FeatureBatch.
type Encoding struct {
	Path    string `msgpack:"path"`
	Time    int    `msgpack:"time"`
	Width   int    `msgpack:"width"`
	Lengths []int  `msgpack:"lengths,omitempty"`

	// Output is indexed by sequence, timestep, and
	// component.
	Output [][][]float64 `msgpack:"output"`

	// Hidden is indexed by layer/direction, sequence, and
	// component.
	Hidden [][][]float64 `msgpack:"hidden"`
}

func readBatch(path string) (*FeatureBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("read batch", err)
	}
	var batch FeatureBatch
	if err := msgpack.Unmarshal(data, &batch); err != nil {
		return nil, essentials.AddCtx("read batch", err)
	}
	return &batch, nil
}

func writeMsgpack(path string, obj interface{}) error {
	data, err := msgpack.Marshal(obj)
	if err != nil {
		return essentials.AddCtx("write "+path, err)
	}
	return writeFile(path, data)
}

// writeFile replaces the file at path without leaving a
// partially written file behind.
func writeFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return essentials.AddCtx("write "+path, err)
	}
	return nil
}

// randomBatch creates Gaussian features with random
// lengths, the longest of which is steps.
func randomBatch(gen *rand.Rand, batch, steps, features int) *FeatureBatch {
	res := &FeatureBatch{}
	for i := 0; i < batch; i++ {
		length := steps
		if i > 0 {
			length = gen.Intn(steps) + 1
		}
		res.Lengths = append(res.Lengths, length)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(res.Lengths)))
	for _, length := range res.Lengths {
		seq := make([][]float64, steps)
		for t := range seq {
			seq[t] = make([]float64, features)
			if t < length {
				for j := range seq[t] {
					seq[t][j] = gen.NormFloat64()
				}
			}
		}
		res.Features = append(res.Features, seq)
	}
	return res
}

// Tensor flattens the batch into a (batch, time, feature)
// tensor.
func (f *FeatureBatch) Tensor(c anyvec.Creator, features int) (anydiff.Res, error) {
	if len(f.Features) != len(f.Lengths) {
		return nil, fmt.Errorf("%d sequences but %d lengths", len(f.Features),
			len(f.Lengths))
	}
	if len(f.Features) == 0 {
		return nil, errors.New("empty batch")
	}
	steps := len(f.Features[0])
	var flat []float64
	for i, seq := range f.Features {
		if len(seq) != steps {
			return nil, fmt.Errorf("sequence %d: expected %d timesteps but got %d", i, steps,
				len(seq))
		}
		for t, step := range seq {
			if len(step) != features {
				return nil, fmt.Errorf("sequence %d timestep %d: expected %d features "+
					"but got %d", i, t, features, len(step))
			}
			flat = append(flat, step...)
		}
	}
	return anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(flat))), nil
}

// unflatten splits a tensor into rows of rows of
// components.
func unflatten(v anyvec.Vector, outer, inner int) [][][]float64 {
	data := float64s(v)
	if outer == 0 || inner == 0 {
		return nil
	}
	middle := len(data) / (outer * inner)
	res := make([][][]float64, outer)
	for i := range res {
		res[i] = make([][]float64, middle)
		for j := range res[i] {
			offset := (i*middle + j) * inner
			res[i][j] = data[offset : offset+inner]
		}
	}
	return res
}

func float64s(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported numeric list: %T", data))
	}
}
