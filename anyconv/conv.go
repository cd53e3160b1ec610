// Package anyconv provides various types of layers for
// convolutional neural networks.
package anyconv

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Conv is a convolutional layer.
//
// All input and output tensors are row-major depth-minor.
//
// Zero padding is applied to every border before the
// filters slide over the input, and dilation spaces out
// the filter taps.
// A zero dilation is treated as a dilation of 1.
type Conv struct {
	FilterCount  int
	FilterWidth  int
	FilterHeight int

	StrideX int
	StrideY int

	PaddingX int
	PaddingY int

	DilationX int
	DilationY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	Filters *anydiff.Var
	Biases  *anydiff.Var

	// Parallel spreads the images of a batch across
	// goroutines, which helps small convolutions on a CPU.
	Parallel bool

	padder *Padding
	kernel *im2col
}

// ConvOutputSize applies the convolution output size
// formula along one axis:
//
//     floor((in + 2*padding - dilation*(kernel-1) - 1) / stride) + 1
//
// The result is negative or zero when the (padded) input
// is smaller than the dilated kernel.
func ConvOutputSize(in, kernel, stride, padding, dilation int) int {
	if dilation == 0 {
		dilation = 1
	}
	if stride <= 0 {
		panic("stride must be positive")
	}
	num := in + 2*padding - dilation*(kernel-1) - 1
	q := num / stride
	if num%stride != 0 && num < 0 {
		q--
	}
	return q + 1
}

// InitRand initializes the filters randomly and the biases
// to zero, and then calls Setup.
func (c *Conv) InitRand(cr anyvec.Creator) {
	c.InitZero(cr)

	normalizer := 1 / math.Sqrt(float64(c.FilterWidth*c.FilterHeight*c.InputDepth))
	anyvec.Rand(c.Filters.Vector, anyvec.Normal, nil)
	c.Filters.Vector.Scale(cr.MakeNumeric(normalizer))
}

// InitZero initializes the layer to zero and then calls
// Setup.
func (c *Conv) InitZero(cr anyvec.Creator) {
	filterSize := c.FilterWidth * c.FilterHeight * c.InputDepth
	c.Filters = anydiff.NewVar(cr.MakeVector(filterSize * c.FilterCount))
	c.Biases = anydiff.NewVar(cr.MakeVector(c.FilterCount))
	c.Setup()
}

// WithInputSize creates a copy of the layer for inputs of
// a different width and height.
// The copy shares its Filters and Biases with c.
//
// The layer must have been initialized.
func (c *Conv) WithInputSize(width, height int) *Conv {
	res := *c
	res.InputWidth = width
	res.InputHeight = height
	res.padder = nil
	res.kernel = nil
	res.Setup()
	return &res
}

// OutputWidth returns the width of the output tensor.
func (c *Conv) OutputWidth() int {
	return clipSize(ConvOutputSize(c.InputWidth, c.FilterWidth, c.StrideX, c.PaddingX,
		c.DilationX))
}

// OutputHeight returns the height of the output tensor.
func (c *Conv) OutputHeight() int {
	return clipSize(ConvOutputSize(c.InputHeight, c.FilterHeight, c.StrideY, c.PaddingY,
		c.DilationY))
}

// OutputDepth returns the depth of the output tensor.
func (c *Conv) OutputDepth() int {
	return c.FilterCount
}

// Apply pads the input tensor and then convolves it.
//
// The layer must have been set up.
func (c *Conv) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if c.kernel == nil {
		panic("convolution is not set up")
	}
	if c.padder != nil {
		in = c.padder.Apply(in, batchSize)
	}
	return c.kernel.Apply(in, batchSize)
}

// Parameters returns the layer's parameters.
// The filters come before the biases in the resulting
// slice.
//
// If the layer is uninitialized, the result is nil.
func (c *Conv) Parameters() []*anydiff.Var {
	if c.Filters == nil || c.Biases == nil {
		return nil
	}
	return []*anydiff.Var{c.Filters, c.Biases}
}

// Setup prepares the layer for its current fields.
// It must be called after Filters and Biases are set by
// hand, and again after any other field changes.
func (c *Conv) Setup() {
	if c.PaddingX != 0 || c.PaddingY != 0 {
		c.padder = symmetricPadding(c)
		c.padder.Prepare(c.Filters.Vector.Creator())
	}
	c.kernel = newIm2Col(c)
}

func (c *Conv) paddedWidth() int {
	return c.InputWidth + 2*c.PaddingX
}

func (c *Conv) paddedHeight() int {
	return c.InputHeight + 2*c.PaddingY
}

func clipSize(s int) int {
	if s < 0 {
		return 0
	}
	return s
}

func dilation(d int) int {
	if d == 0 {
		return 1
	}
	return d
}
