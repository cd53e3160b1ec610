package anylas

import (
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anylisten/anyconv"
	"github.com/unixpickle/anyvec"
)

// A Module is one stage of a convolution stack.
//
// Unlike an anylisten.Layer, a Module is told the shape of
// its input images, since the time dimension changes from
// batch to batch.
type Module interface {
	Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res
	OutputShape(in Shape) Shape
}

// A LengthMapper is a Module which changes the length of
// sequences along an axis.
// Modules which do not implement LengthMapper preserve
// lengths.
type LengthMapper interface {
	OutputLength(axis Axis, length int) int
}

// A MaskedApplier is a Module which computes statistics
// over its inputs and can restrict them to the valid
// (unmasked) positions.
type MaskedApplier interface {
	ApplyMasked(in anydiff.Res, batch int, shape Shape, validRows int) anydiff.Res
}

// A Trainer is a Module that behaves differently during
// training.
type Trainer interface {
	SetTraining(training bool)
}

// Conv2d is a 2D convolution Module.
//
// Per-shape convolutions are derived from Layer as needed,
// and all of them share Layer's parameters.
type Conv2d struct {
	Layer *anyconv.Conv

	lock  sync.Mutex
	cache map[Shape]*anyconv.Conv
}

// NewConv2d creates a randomized Conv2d.
func NewConv2d(c anyvec.Creator, inDepth, outDepth int, x, y Geometry) *Conv2d {
	layer := &anyconv.Conv{
		FilterCount:  outDepth,
		FilterWidth:  x.Kernel,
		FilterHeight: y.Kernel,
		StrideX:      x.Stride,
		StrideY:      y.Stride,
		PaddingX:     x.Padding,
		PaddingY:     y.Padding,
		DilationX:    x.Dilation,
		DilationY:    y.Dilation,
		InputDepth:   inDepth,
	}
	layer.InitRand(c)
	return &Conv2d{Layer: layer}
}

// Apply applies the convolution.
func (c *Conv2d) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	return c.forShape(shape).Apply(in, batch)
}

// OutputShape computes the shape of the output images.
func (c *Conv2d) OutputShape(in Shape) Shape {
	return Shape{
		Width:  clipLength(c.OutputLength(AxisX, in.Width)),
		Height: clipLength(c.OutputLength(AxisY, in.Height)),
		Depth:  c.Layer.FilterCount,
	}
}

// OutputLength applies the convolution length formula.
// The result may be zero or negative for short inputs.
func (c *Conv2d) OutputLength(axis Axis, length int) int {
	l := c.Layer
	if axis == AxisX {
		return anyconv.ConvOutputSize(length, l.FilterWidth, l.StrideX, l.PaddingX,
			l.DilationX)
	}
	return anyconv.ConvOutputSize(length, l.FilterHeight, l.StrideY, l.PaddingY,
		l.DilationY)
}

// Parameters returns the filters and biases.
func (c *Conv2d) Parameters() []*anydiff.Var {
	return c.Layer.Parameters()
}

// SetParallel controls whether the images of a batch are
// convolved concurrently.
func (c *Conv2d) SetParallel(parallel bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Layer.Parallel = parallel
	c.Layer.Setup()
	c.cache = nil
}

func (c *Conv2d) forShape(shape Shape) *anyconv.Conv {
	if shape.Depth != c.Layer.InputDepth {
		panic("incorrect input depth")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.cache == nil {
		c.cache = map[Shape]*anyconv.Conv{}
	}
	if res, ok := c.cache[shape]; ok {
		return res
	}
	res := c.Layer.WithInputSize(shape.Width, shape.Height)
	c.cache[shape] = res
	return res
}

// BatchNorm2d normalizes every channel of its input.
type BatchNorm2d struct {
	Layer *anyconv.BatchNorm
}

// NewBatchNorm2d creates a BatchNorm2d for the given
// number of channels.
func NewBatchNorm2d(c anyvec.Creator, depth int) *BatchNorm2d {
	layer := anyconv.NewBatchNorm(c, depth)
	layer.Stabilizer = batchNormEpsilon
	return &BatchNorm2d{Layer: layer}
}

// Apply normalizes using every position of the input.
func (b *BatchNorm2d) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	return b.Layer.Apply(in, batch)
}

// ApplyMasked normalizes with batch statistics taken from
// validRows positions.
func (b *BatchNorm2d) ApplyMasked(in anydiff.Res, batch int, shape Shape,
	validRows int) anydiff.Res {
	return b.Layer.ApplyMasked(in, batch, validRows)
}

// OutputShape returns the input shape.
func (b *BatchNorm2d) OutputShape(in Shape) Shape {
	return in
}

// SetTraining switches between batch statistics and
// running statistics.
func (b *BatchNorm2d) SetTraining(training bool) {
	b.Layer.Training = training
}

// Parameters returns the scales and biases.
func (b *BatchNorm2d) Parameters() []*anydiff.Var {
	return b.Layer.Parameters()
}

// Activation applies an element-wise anylisten.Layer.
type Activation struct {
	Layer anylisten.Layer
}

// Apply applies the layer.
func (a *Activation) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	return a.Layer.Apply(in, batch)
}

// OutputShape returns the input shape.
func (a *Activation) OutputShape(in Shape) Shape {
	return in
}

// MaxPool2d downsamples both axes by 2, dropping odd
// trailing rows and columns.
type MaxPool2d struct {
	Depth int

	lock  sync.Mutex
	cache map[Shape]*anyconv.MaxPool
}

// Apply applies max pooling.
func (m *MaxPool2d) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	out := m.OutputShape(shape)
	if out.Width == 0 || out.Height == 0 {
		return anydiff.NewConst(in.Output().Creator().MakeVector(0))
	}
	return m.forShape(in.Output().Creator(), shape).Apply(in, batch)
}

// OutputShape halves the width and height.
func (m *MaxPool2d) OutputShape(in Shape) Shape {
	return Shape{
		Width:  m.OutputLength(AxisX, in.Width),
		Height: m.OutputLength(AxisY, in.Height),
		Depth:  in.Depth,
	}
}

// OutputLength halves the length, rounding down.
func (m *MaxPool2d) OutputLength(axis Axis, length int) int {
	if length < 0 {
		return 0
	}
	return length / poolSpan
}

func (m *MaxPool2d) forShape(c anyvec.Creator, shape Shape) *anyconv.MaxPool {
	if shape.Depth != m.Depth {
		panic("incorrect input depth")
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.cache == nil {
		m.cache = map[Shape]*anyconv.MaxPool{}
	}
	if res, ok := m.cache[shape]; ok {
		return res
	}
	proto := &anyconv.MaxPool{SpanX: poolSpan, SpanY: poolSpan, InputDepth: m.Depth}
	res := proto.WithInputSize(c, shape.Width, shape.Height)
	m.cache[shape] = res
	return res
}

const (
	poolSpan         = 2
	batchNormEpsilon = 1e-5
)

func clipLength(l int) int {
	if l < 0 {
		return 0
	}
	return l
}
