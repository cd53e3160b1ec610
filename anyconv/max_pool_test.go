package anyconv

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestMaxPoolOutput(t *testing.T) {
	// A (time, feature) image with odd sizes, so the last
	// row and column are dropped.
	layer := (&MaxPool{SpanX: 2, SpanY: 2, InputDepth: 3}).WithInputSize(
		anyvec64.CurrentCreator(), 7, 9)
	if layer.OutputWidth() != 3 || layer.OutputHeight() != 4 {
		t.Fatalf("unexpected output size %dx%d", layer.OutputWidth(), layer.OutputHeight())
	}

	imgSize := 7 * 9 * 3
	input := anyvec64.MakeVector(imgSize * 2)
	anyvec.Rand(input, anyvec.Normal, nil)
	data := input.Data().([]float64)
	expected := append(naiveMaxPool(layer, data[:imgSize]),
		naiveMaxPool(layer, data[imgSize:])...)
	actual := layer.Apply(anydiff.NewConst(input), 2).Output().Data().([]float64)

	if len(actual) != len(expected) {
		t.Fatalf("expected length %d but got %d", len(expected), len(actual))
	}
	for i, x := range expected {
		if actual[i] != x {
			t.Fatalf("output %d: should be %f but got %f", i, x, actual[i])
		}
	}
}

func TestMaxPoolTooShort(t *testing.T) {
	layer := &MaxPool{SpanX: 2, SpanY: 2, InputDepth: 2}
	for _, size := range [][2]int{{1, 6}, {6, 1}, {0, 4}} {
		resized := layer.WithInputSize(anyvec64.CurrentCreator(), size[0], size[1])
		in := anyvec64.MakeVector(size[0] * size[1] * 2 * 3)
		out := resized.Apply(anydiff.NewConst(in), 3).Output()
		if out.Len() != 0 {
			t.Errorf("size %v: expected empty output but got %d components", size,
				out.Len())
		}
	}
}

func TestMaxPoolProp(t *testing.T) {
	layer := &MaxPool{
		SpanX:       2,
		SpanY:       3,
		InputWidth:  5,
		InputHeight: 7,
		InputDepth:  2,
	}
	img := anyvec64.MakeVector(5 * 7 * 2 * 3)
	anyvec.Rand(img, anyvec.Uniform, nil)
	inVar := anydiff.NewVar(img)

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return layer.Apply(inVar, 3)
		},
		V:     []*anydiff.Var{inVar},
		Delta: 1e-6,
		Prec:  1e-3,
	}
	checker.FullCheck(t)
}

// naiveMaxPool pools one image, visiting outputs in
// row-major depth-minor order.
func naiveMaxPool(m *MaxPool, img []float64) []float64 {
	var res []float64
	for outY := 0; outY < m.OutputHeight(); outY++ {
		for outX := 0; outX < m.OutputWidth(); outX++ {
			for z := 0; z < m.InputDepth; z++ {
				max := math.Inf(-1)
				for y := outY * m.SpanY; y < (outY+1)*m.SpanY; y++ {
					for x := outX * m.SpanX; x < (outX+1)*m.SpanX; x++ {
						max = math.Max(max, img[(y*m.InputWidth+x)*m.InputDepth+z])
					}
				}
				res = append(res, max)
			}
		}
	}
	return res
}
