package anylas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestMaskTimeValues(t *testing.T) {
	c := anyvec64.CurrentCreator()
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList([]float64{
		1, 2, 3,
		4, 5, 6,

		7, 8, 9,
		10, 11, 12,
	})))
	shape := Shape{Width: 3, Height: 2, Depth: 1}

	byX := vectorData(MaskTime(in, []int{2, 1}, shape, AxisX))
	assert.Equal(t, []float64{1, 2, 0, 4, 5, 0, 7, 0, 0, 10, 0, 0}, byX)

	byY := vectorData(MaskTime(in, []int{5, 1}, shape, AxisY))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 0, 0}, byY)

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, vectorData(in))
}

func TestMaskTimeDepth(t *testing.T) {
	c := anyvec64.CurrentCreator()
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList([]float64{
		1, 2, 3, 4,
	})))
	shape := Shape{Width: 2, Height: 1, Depth: 2}
	assert.Equal(t, []float64{1, 2, 0, 0}, vectorData(MaskTime(in, []int{1}, shape, AxisX)))
}

func TestMaskTimeIdempotent(t *testing.T) {
	shape := Shape{Width: 5, Height: 3, Depth: 2}
	lengths := []int{5, 2, 0, 7}
	for _, axis := range []Axis{AxisX, AxisY} {
		in := randomVar(len(lengths) * shape.Size())
		once := vectorData(MaskTime(in, lengths, shape, axis))
		twice := vectorData(MaskTime(MaskTime(in, lengths, shape, axis), lengths, shape,
			axis))
		assert.Equal(t, once, twice, "axis %v", axis)
	}
}

func TestMaskTimeNoop(t *testing.T) {
	in := randomVar(12)
	out := MaskTime(in, []int{3, 4}, Shape{Width: 3, Height: 2, Depth: 1}, AxisX)
	assert.True(t, out == anydiff.Res(in))
}

func TestMaskConvPaddingIndependent(t *testing.T) {
	c := anyvec64.CurrentCreator()
	stack := NewRepeatStack(c, []Geometry{sameGeometry, sameGeometry})
	mask := &MaskConv{Stack: stack}
	shape := Shape{Width: 6, Height: 3, Depth: 1}
	lengths := []int{6, 2}

	in1 := randomVar(2 * shape.Size())
	in2 := anydiff.NewVar(in1.Vector.Copy())
	data := in2.Vector.Data().([]float64)
	for y := 0; y < shape.Height; y++ {
		for x := lengths[1]; x < shape.Width; x++ {
			data[shape.Size()+y*shape.Width+x] += 100
		}
	}
	in2.Vector.SetData(c.MakeNumericList(data))

	out1, outShape, outLens, err := mask.Apply(in1, lengths, shape)
	require.NoError(t, err)
	out2, _, _, err := mask.Apply(in2, lengths, shape)
	require.NoError(t, err)

	assert.Equal(t, Shape{Width: 6, Height: 3, Depth: repeatDepth}, outShape)
	assert.Equal(t, lengths, outLens)
	assert.InDeltaSlice(t, vectorData(out1), vectorData(out2), 1e-10)

	masked := vectorData(out1)[outShape.Size():]
	for y := 0; y < outShape.Height; y++ {
		for x := lengths[1]; x < outShape.Width; x++ {
			for z := 0; z < outShape.Depth; z++ {
				require.Equal(t, 0.0, masked[(y*outShape.Width+x)*outShape.Depth+z])
			}
		}
	}
}

func TestMaskConvBadInput(t *testing.T) {
	mask := &MaskConv{Stack: NewRepeatStack(anyvec64.CurrentCreator(),
		[]Geometry{sameGeometry})}
	_, _, _, err := mask.Apply(randomVar(10), []int{3, 3}, Shape{Width: 3, Height: 2,
		Depth: 1})
	assert.IsType(t, &InputError{}, err)
	_, _, _, err = mask.Apply(randomVar(10), nil, Shape{Width: 3, Height: 2, Depth: 1})
	assert.IsType(t, &InputError{}, err)
}

func TestValidRows(t *testing.T) {
	shape := Shape{Width: 4, Height: 3, Depth: 5}
	assert.Equal(t, 3*(4+2+0), validRows([]int{9, 2, -1}, shape, AxisX))
	assert.Equal(t, 4*(3+1), validRows([]int{3, 1}, shape, AxisY))
}
