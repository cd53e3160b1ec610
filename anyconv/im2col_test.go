package anyconv

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

// spectrogramConv is shaped like the first layer of a
// stack run over (feature, time) images.
func spectrogramConv(parallel bool) *Conv {
	conv := &Conv{
		FilterCount:  8,
		FilterWidth:  3,
		FilterHeight: 3,

		StrideX:   2,
		StrideY:   1,
		PaddingX:  1,
		PaddingY:  1,
		DilationX: 2,

		InputWidth:  17,
		InputHeight: 6,
		InputDepth:  1,

		Parallel: parallel,
	}
	conv.InitRand(anyvec64.CurrentCreator())
	return conv
}

func TestIm2ColParallel(t *testing.T) {
	serial := spectrogramConv(false)
	parallel := *serial
	parallel.Parallel = true
	parallel.Setup()

	batch := 5
	in := anyvec64.MakeVector(17 * 6 * batch)
	anyvec.Rand(in, anyvec.Normal, nil)
	inVar := anydiff.NewVar(in)

	out1 := serial.Apply(inVar, batch)
	out2 := parallel.Apply(inVar, batch)
	if out1.Output().Len() != serial.OutputWidth()*6*8*batch {
		t.Fatalf("unexpected output length %d", out1.Output().Len())
	}
	if !vecsClose(out1.Output(), out2.Output()) {
		t.Error("mismatching output values")
	}

	upstream := anyvec64.MakeVector(out1.Output().Len())
	anyvec.Rand(upstream, anyvec.Normal, nil)

	vars := []*anydiff.Var{inVar, serial.Filters, serial.Biases}
	grad1 := anydiff.NewGrad(vars...)
	out1.Propagate(upstream.Copy(), grad1)
	grad2 := anydiff.NewGrad(vars...)
	out2.Propagate(upstream.Copy(), grad2)
	for i, v := range vars {
		if !vecsClose(grad1[v], grad2[v]) {
			t.Errorf("gradient for variable %d differs", i)
		}
	}
}

func TestIm2ColInputOnlyProp(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		conv := spectrogramConv(parallel)
		in := anyvec64.MakeVector(17 * 6 * 3)
		anyvec.Rand(in, anyvec.Normal, nil)
		inVar := anydiff.NewVar(in)
		checker := anydifftest.ResChecker{
			F: func() anydiff.Res {
				return conv.Apply(inVar, 3)
			},
			V:     []*anydiff.Var{inVar},
			Delta: 1e-5,
			Prec:  1e-4,
		}
		checker.FullCheck(t)
	}
}

func TestIm2ColEmptyOutput(t *testing.T) {
	conv := &Conv{
		FilterCount:  2,
		FilterWidth:  3,
		FilterHeight: 3,
		StrideX:      1,
		StrideY:      1,
		InputWidth:   2,
		InputHeight:  6,
		InputDepth:   1,
	}
	conv.InitRand(anyvec64.CurrentCreator())
	in := anyvec64.MakeVector(2 * 6 * 2)
	if n := conv.Apply(anydiff.NewConst(in), 2).Output().Len(); n != 0 {
		t.Errorf("expected empty output but got %d components", n)
	}
}

func vecsClose(v1, v2 anyvec.Vector) bool {
	c := v1.Creator()
	diff := v1.Copy()
	diff.Sub(v2)
	return c.NumOps().Less(anyvec.AbsMax(diff), c.MakeNumeric(1e-6))
}
