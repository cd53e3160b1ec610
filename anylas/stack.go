package anylas

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anyvec"
)

const (
	hardTanhMin = 0
	hardTanhMax = 20

	increaseDepth1 = 64
	increaseDepth2 = 128
	repeatDepth    = 32
)

// Sequential is an ordered convolution stack.
type Sequential struct {
	Modules []Module

	// TimeAxis is the image axis which corresponds to time.
	TimeAxis Axis
}

// Apply applies every module in order.
func (s *Sequential) Apply(in anydiff.Res, batch int, shape Shape) (anydiff.Res, Shape) {
	for _, m := range s.Modules {
		in = m.Apply(in, batch, shape)
		shape = m.OutputShape(shape)
	}
	return in, shape
}

// OutputShape computes the shape of the stack's output.
func (s *Sequential) OutputShape(shape Shape) Shape {
	for _, m := range s.Modules {
		shape = m.OutputShape(shape)
	}
	return shape
}

// Shapes computes the output shape of every module for an
// input of the given shape.
func (s *Sequential) Shapes(shape Shape) []Shape {
	res := make([]Shape, len(s.Modules))
	for i, m := range s.Modules {
		shape = m.OutputShape(shape)
		res[i] = shape
	}
	return res
}

// OutputLengths computes the length of every sequence
// after the stack.
// Lengths are not clipped at zero, so degenerate inputs
// can be detected.
func (s *Sequential) OutputLengths(lengths []int) []int {
	res := append([]int{}, lengths...)
	for _, m := range s.Modules {
		mapLengths(m, s.TimeAxis, res)
	}
	return res
}

// SetTraining updates every module which implements
// Trainer.
func (s *Sequential) SetTraining(training bool) {
	for _, m := range s.Modules {
		if t, ok := m.(Trainer); ok {
			t.SetTraining(training)
		}
	}
}

// SetParallel updates every convolution in the stack.
// See Conv2d.SetParallel.
func (s *Sequential) SetParallel(parallel bool) {
	for _, m := range s.Modules {
		if conv, ok := m.(*Conv2d); ok {
			conv.SetParallel(parallel)
		}
	}
}

// Parameters returns the parameters of every module.
func (s *Sequential) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, m := range s.Modules {
		res = append(res, anylisten.AllParameters(m)...)
	}
	return res
}

// BatchNorms returns the batch normalization modules in
// order.
func (s *Sequential) BatchNorms() []*BatchNorm2d {
	var res []*BatchNorm2d
	for _, m := range s.Modules {
		if bn, ok := m.(*BatchNorm2d); ok {
			res = append(res, bn)
		}
	}
	return res
}

func mapLengths(m Module, axis Axis, lengths []int) {
	if lm, ok := m.(LengthMapper); ok {
		for i, l := range lengths {
			lengths[i] = lm.OutputLength(axis, l)
		}
	}
}

// NewIncreaseStack creates the channel-increasing stack.
//
// Images are (time, feature) with time along the y-axis.
// Both axes are downsampled by 4, and the output has 128
// channels.
func NewIncreaseStack(c anyvec.Creator) *Sequential {
	return &Sequential{
		TimeAxis: AxisY,
		Modules: []Module{
			NewConv2d(c, 1, increaseDepth1, sameGeometry, sameGeometry),
			hardTanh(),
			NewBatchNorm2d(c, increaseDepth1),
			NewConv2d(c, increaseDepth1, increaseDepth1, sameGeometry, sameGeometry),
			hardTanh(),
			&MaxPool2d{Depth: increaseDepth1},
			NewBatchNorm2d(c, increaseDepth1),
			NewConv2d(c, increaseDepth1, increaseDepth2, sameGeometry, sameGeometry),
			hardTanh(),
			NewBatchNorm2d(c, increaseDepth2),
			NewConv2d(c, increaseDepth2, increaseDepth2, sameGeometry, sameGeometry),
			hardTanh(),
			&MaxPool2d{Depth: increaseDepth2},
		},
	}
}

// NewRepeatStack creates the fixed-width stack.
//
// Images are (feature, time) with time along the x-axis.
// The timeGeometry gives the time-axis geometry of each
// convolution; the feature axis is always preserved.
// Consecutive convolutions are separated by a HardTanh
// and a batch normalization.
func NewRepeatStack(c anyvec.Creator, timeGeometry []Geometry) *Sequential {
	res := &Sequential{TimeAxis: AxisX}
	inDepth := 1
	for i, g := range timeGeometry {
		if i > 0 {
			res.Modules = append(res.Modules, NewBatchNorm2d(c, repeatDepth))
		}
		res.Modules = append(res.Modules,
			NewConv2d(c, inDepth, repeatDepth, g, sameGeometry),
			hardTanh())
		inDepth = repeatDepth
	}
	return res
}

// withDebugStages inserts a logging module after every
// module of the stack.
func withDebugStages(s *Sequential, logger logrus.FieldLogger) *Sequential {
	res := &Sequential{TimeAxis: s.TimeAxis}
	for i, m := range s.Modules {
		res.Modules = append(res.Modules, m, &Activation{
			Layer: &anylisten.Debug{
				Logger:    logger,
				ID:        fmt.Sprintf("%T/%d", m, i),
				PrintMean: true,
			},
		})
	}
	return res
}

func hardTanh() Module {
	return &Activation{Layer: &anylisten.HardTanh{Min: hardTanhMin, Max: hardTanhMax}}
}
