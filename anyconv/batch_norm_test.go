package anyconv

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestBatchNormOutput(t *testing.T) {
	layer := &BatchNorm{
		InputCount: 2,
		Scalers:    anydiff.NewVar(anyvec32.MakeVectorData([]float32{2, -3})),
		Biases:     anydiff.NewVar(anyvec32.MakeVectorData([]float32{-1.5, 2})),
		Training:   true,
	}
	vec := anyvec32.MakeVectorData([]float32{
		-0.636299517987754, 1.381820934572628, 1.117062796520384,
		-1.032042307499387, -0.603144099627179, 0.937477768422949,
	})
	actual := layer.Apply(anydiff.NewConst(vec), 1).Output().Data().([]float32)
	expected := []float32{
		-2.953427612694010, -0.723517206628873, 1.325934113323319,
		6.176822169129221, -2.872506500629310, 0.546695037499651,
	}
	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(float64(a)) || math.Abs(float64(a-x)) > 1e-3 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestBatchNormMasked(t *testing.T) {
	layer := NewBatchNorm(anyvec64.CurrentCreator(), 2)
	layer.Training = true

	valid := []float64{1, 4, 3, -2, 5, 0}
	padded := append(append([]float64{}, valid...), 0, 0, 0, 0)

	expected := layer.Apply(anydiff.NewConst(anyvec64.MakeVectorData(valid)), 1)
	actual := layer.ApplyMasked(anydiff.NewConst(anyvec64.MakeVectorData(padded)), 1, 3)

	exp := expected.Output().Data().([]float64)
	act := actual.Output().Data().([]float64)
	for i, x := range exp {
		if math.Abs(act[i]-x) > 1e-9 {
			t.Fatalf("masked rows should not change statistics: expected %v but got %v",
				exp, act[:len(exp)])
		}
	}
}

func TestBatchNormRunning(t *testing.T) {
	c := anyvec64.CurrentCreator()
	layer := NewBatchNorm(c, 1)
	layer.Stabilizer = 1e-8

	// Fresh running statistics make the layer an identity.
	in := anyvec64.MakeVectorData([]float64{1, 2, 3})
	out := layer.Apply(anydiff.NewConst(in), 3).Output().Data().([]float64)
	for i, x := range []float64{1, 2, 3} {
		if math.Abs(out[i]-x) > 1e-6 {
			t.Fatalf("expected identity but got %v", out)
		}
	}

	layer.Training = true
	layer.Momentum = 1
	layer.Apply(anydiff.NewConst(in), 3)
	mean := layer.RunningMean.Data().([]float64)[0]
	variance := layer.RunningVariance.Data().([]float64)[0]
	if math.Abs(mean-2) > 1e-9 {
		t.Errorf("running mean should be 2 but got %f", mean)
	}
	if math.Abs(variance-1) > 1e-9 {
		t.Errorf("running variance should be 1 but got %f", variance)
	}

	layer.Training = false
	out = layer.Apply(anydiff.NewConst(in), 3).Output().Data().([]float64)
	for i, x := range []float64{-1, 0, 1} {
		if math.Abs(out[i]-x) > 1e-6 {
			t.Fatalf("expected %v but got %v", []float64{-1, 0, 1}, out)
		}
	}
}

func TestBatchNormProp(t *testing.T) {
	layer := NewBatchNorm(anyvec32.CurrentCreator(), 2)
	layer.Training = true
	input := anyvec32.MakeVector(24)
	anyvec.Rand(input, anyvec.Normal, nil)
	inVar := anydiff.NewVar(input)

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return layer.Apply(inVar, 12)
		},
		V: []*anydiff.Var{inVar},
	}
	checker.FullCheck(t)
}

func TestBatchNormRunningProp(t *testing.T) {
	layer := NewBatchNorm(anyvec32.CurrentCreator(), 2)
	anyvec.Rand(layer.Scalers.Vector, anyvec.Normal, nil)
	input := anyvec32.MakeVector(24)
	anyvec.Rand(input, anyvec.Normal, nil)
	inVar := anydiff.NewVar(input)

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return layer.Apply(inVar, 12)
		},
		V: append([]*anydiff.Var{inVar}, layer.Parameters()...),
	}
	checker.FullCheck(t)
}
