package anylas

import "github.com/unixpickle/anydiff"

// MaskConv wraps a convolution stack so that padded time
// positions are zero after every module.
//
// Since conv padding reads zeros past the edge of an
// image, masking makes the outputs for the valid part of a
// sequence independent of how much padding follows it.
type MaskConv struct {
	Stack *Sequential
}

// Apply runs the stack on a batch of images.
//
// The input is masked before the first module as well.
// The returned lengths are the sequence lengths after the
// stack, which were used to mask the final output.
func (m *MaskConv) Apply(in anydiff.Res, lengths []int, shape Shape) (anydiff.Res,
	Shape, []int, error) {
	batch := len(lengths)
	if batch == 0 {
		return nil, shape, nil, inputErrorf("empty batch")
	}
	if in.Output().Len() != batch*shape.Size() {
		return nil, shape, nil, inputErrorf("expected %d components for %d images of "+
			"shape %v but got %d", batch*shape.Size(), batch, shape, in.Output().Len())
	}
	axis := m.Stack.TimeAxis
	lengths = append([]int{}, lengths...)

	out := MaskTime(in, lengths, shape, axis)
	for _, module := range m.Stack.Modules {
		if ma, ok := module.(MaskedApplier); ok {
			out = ma.ApplyMasked(out, batch, shape, validRows(lengths, shape, axis))
		} else {
			out = module.Apply(out, batch, shape)
		}
		shape = module.OutputShape(shape)
		mapLengths(module, axis, lengths)
		out = MaskTime(out, lengths, shape, axis)
	}
	return out, shape, lengths, nil
}

// MaskTime zeros every position of every image whose
// coordinate along the time axis is at least the length
// of the corresponding sequence.
//
// Lengths at or above the time dimension mask nothing.
// The input is not modified.
func MaskTime(in anydiff.Res, lengths []int, shape Shape, axis Axis) anydiff.Res {
	if in.Output().Len() != len(lengths)*shape.Size() {
		panic("mask size mismatch")
	}
	steps := shape.Along(axis)
	needed := false
	for _, l := range lengths {
		if l < steps {
			needed = true
			break
		}
	}
	if !needed {
		return in
	}

	mask := make([]float64, in.Output().Len())
	idx := 0
	for _, l := range lengths {
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				t := x
				if axis == AxisY {
					t = y
				}
				if t < l {
					for z := 0; z < shape.Depth; z++ {
						mask[idx+z] = 1
					}
				}
				idx += shape.Depth
			}
		}
	}
	c := in.Output().Creator()
	return anydiff.Mul(in, anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(mask))))
}

// validRows counts the image positions inside the valid
// part of every sequence.
func validRows(lengths []int, shape Shape, axis Axis) int {
	var res int
	steps := shape.Along(axis)
	for _, l := range lengths {
		if l > steps {
			l = steps
		}
		if l > 0 {
			res += l * shape.Across(axis)
		}
	}
	return res
}
