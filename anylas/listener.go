// Package anylas implements a length-aware acoustic
// encoder.
//
// A Listener runs a convolution stack over a batch of
// right-padded feature sequences, and then encodes the
// result with a stack of recurrent layers.
package anylas

import (
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Result is the output of a Listener.
type Result struct {
	// Output is a (batch, Time, Width) tensor which is zero
	// at padded positions.
	Output anydiff.Res

	// Time is the number of output timesteps.
	// On the repeat path, it is the longest post-convolution
	// length rather than the time dimension of the
	// convolution output.
	Time  int
	Width int

	// Lengths contains the sequence lengths after the
	// convolution stack.
	// It is nil for the increase stack, which does not
	// track lengths.
	Lengths []int

	// Path is the convolution type which produced the
	// result.
	Path string

	// Hidden contains the final output of every recurrent
	// layer and direction, each a (batch, hidden) tensor.
	// For LSTMs, these are the final hidden states only; the
	// cell states are not included.
	Hidden []anydiff.Res
}

// Listener is a convolutional-recurrent encoder.
type Listener struct {
	Config Config

	Conv *Sequential
	RNN  *Recurrent

	// RNNInputWidth is the size of each timestep fed to
	// the recurrent stack.
	RNNInputWidth int

	training bool
}

// NewListener creates a randomized Listener.
func NewListener(cfg Config) (*Listener, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := cfg.creator()
	cfg.Creator = c

	res := &Listener{Config: cfg}
	switch cfg.ConvType {
	case ConvIncrease:
		res.Conv = NewIncreaseStack(c)
	case ConvRepeat:
		res.Conv = NewRepeatStack(c, cfg.repeatLayers())
	}

	expected := RNNInputWidth(cfg.InputSize)
	outShape := res.Conv.OutputShape(res.imageShape(1))
	actual := outShape.Depth * outShape.Across(res.Conv.TimeAxis)
	if expected != actual {
		return nil, &DimensionError{
			Expected: expected,
			Actual:   actual,
			Reason:   cfg.ConvType + " stack output width",
		}
	}
	res.RNNInputWidth = expected
	if cfg.ParallelConv {
		res.Conv.SetParallel(true)
	}

	rnn, err := NewRecurrent(c, cfg.RNNType, expected, cfg.HiddenDim, cfg.NumLayers,
		cfg.IsBidirectional(), cfg.Dropout(), cfg.logger())
	if err != nil {
		return nil, err
	}
	res.RNN = rnn

	if cfg.DebugStages {
		res.Conv = withDebugStages(res.Conv, cfg.logger())
	}

	cfg.logger().WithFields(logrus.Fields{
		"conv_type":       cfg.ConvType,
		"rnn_type":        cfg.RNNType,
		"rnn_input_width": expected,
		"bidirectional":   cfg.IsBidirectional(),
		"num_layers":      cfg.NumLayers,
		"parallel_conv":   cfg.ParallelConv,
	}).Debug("created listener")

	return res, nil
}

// RNNInputWidth computes the recurrent input width for a
// given number of input features.
//
// Odd feature counts are rounded down to the next even
// number before being multiplied by 32.
func RNNInputWidth(inputSize int) int {
	if inputSize%2 == 1 {
		return (inputSize - 1) << 5
	}
	return inputSize << 5
}

// SetTraining switches between training and evaluation
// mode.
//
// Training mode enables inter-layer dropout, batch
// statistics in batch normalization, and the creator
// check on the increase path.
func (l *Listener) SetTraining(training bool) {
	l.training = training
	l.Conv.SetTraining(training)
	l.RNN.SetTraining(training)
}

// Training reports whether the Listener is in training
// mode.
func (l *Listener) Training() bool {
	return l.training
}

// Parameters returns every learnable variable.
func (l *Listener) Parameters() []*anydiff.Var {
	return append(l.Conv.Parameters(), l.RNN.Parameters()...)
}

// SeqLengths computes the sequence lengths after the
// convolutions of the stack.
// Other modules (such as pooling) are ignored.
//
// Results may be zero or negative for inputs which are too
// short.
func (l *Listener) SeqLengths(lengths []int) []int {
	res := append([]int{}, lengths...)
	for _, m := range l.Conv.Modules {
		if conv, ok := m.(*Conv2d); ok {
			mapLengths(conv, l.Conv.TimeAxis, res)
		}
	}
	return res
}

// OutputLengths computes the sequence lengths after the
// whole convolution stack, including pooling.
func (l *Listener) OutputLengths(lengths []int) []int {
	return l.Conv.OutputLengths(lengths)
}

// OutputShape computes the time dimension and width of
// the output for an input with the given number of
// timesteps, at least one sequence of which uses all of
// them.
func (l *Listener) OutputShape(steps int) (outSteps, width int) {
	shape := l.Conv.OutputShape(l.imageShape(steps))
	return shape.Along(l.Conv.TimeAxis), l.RNN.OutputWidth()
}

// Forward encodes a batch of right-padded sequences.
//
// The input is a (batch, time, feature) tensor, and there
// is one length per sequence.
func (l *Listener) Forward(in anydiff.Res, lengths []int) (*Result, error) {
	steps, err := l.checkInput(in, lengths)
	if err != nil {
		return nil, err
	}
	var res *Result
	switch l.Config.ConvType {
	case ConvIncrease:
		res, err = l.forwardIncrease(in, len(lengths), steps)
	case ConvRepeat:
		res, err = l.forwardRepeat(in, lengths, steps)
	default:
		err = &ConfigError{Option: "conv_type", Value: l.Config.ConvType}
	}
	if err != nil {
		return nil, err
	}
	l.Config.logger().WithFields(logrus.Fields{
		"path":      res.Path,
		"batch":     len(lengths),
		"in_steps":  steps,
		"out_steps": res.Time,
		"width":     res.Width,
	}).Debug("listener forward")
	return res, nil
}

func (l *Listener) forwardIncrease(in anydiff.Res, batch, steps int) (*Result, error) {
	if err := l.checkStages(steps); err != nil {
		return nil, err
	}
	images, shape := l.Conv.Apply(in, batch, l.imageShape(steps))
	outSteps := shape.Along(AxisY)
	width := shape.Depth * shape.Across(AxisY)
	if width != l.RNNInputWidth {
		return nil, &DimensionError{
			Expected: l.RNNInputWidth,
			Actual:   width,
			Reason:   "increase stack output width",
		}
	}
	features := flattenTime(images, batch, shape, AxisY)

	lengths := make([]int, batch)
	for i := range lengths {
		lengths[i] = outSteps
	}
	if l.training {
		l.RNN.Compact()
	}
	return l.encode(features, lengths, outSteps, outSteps, nil)
}

func (l *Listener) forwardRepeat(in anydiff.Res, lengths []int, steps int) (*Result,
	error) {
	seqLens := l.SeqLengths(lengths)
	for i, sl := range seqLens {
		if sl <= 0 {
			return nil, &LengthError{Index: i, Input: lengths[i], Output: sl}
		}
	}
	if err := l.checkStages(steps); err != nil {
		return nil, err
	}
	batch := len(lengths)
	images := transposeFeatures(in, batch, steps, l.Config.InputSize)
	mask := &MaskConv{Stack: l.Conv}
	out, shape, outLens, err := mask.Apply(images, lengths, l.imageShape(steps))
	if err != nil {
		return nil, err
	}
	width := shape.Depth * shape.Across(AxisX)
	if width != l.RNNInputWidth {
		return nil, &DimensionError{
			Expected: l.RNNInputWidth,
			Actual:   width,
			Reason:   "repeat stack output width",
		}
	}
	features := flattenTime(out, batch, shape, AxisX)
	return l.encode(features, outLens, shape.Along(AxisX), maxLength(outLens), outLens)
}

// encode runs the recurrent stack on (batch, inSteps, width)
// features and pads its output to outSteps timesteps,
// which must be at least the longest length.
func (l *Listener) encode(features anydiff.Res, lengths []int, inSteps, outSteps int,
	reported []int) (*Result, error) {
	seq := packSeq(features, lengths, inSteps, l.RNNInputWidth)
	encoded, hidden, err := l.RNN.Apply(seq, lengths, outSteps)
	if err != nil {
		return nil, err
	}
	width := l.RNN.OutputWidth()
	return &Result{
		Output:  padSeq(encoded, lengths, outSteps, width),
		Time:    outSteps,
		Width:   width,
		Lengths: reported,
		Path:    l.Config.ConvType,
		Hidden:  hidden,
	}, nil
}

func (l *Listener) checkInput(in anydiff.Res, lengths []int) (int, error) {
	batch := len(lengths)
	if batch == 0 {
		return 0, inputErrorf("empty batch")
	}
	features := l.Config.InputSize
	size := in.Output().Len()
	if size == 0 || size%(batch*features) != 0 {
		return 0, inputErrorf("%d components cannot hold %d sequences of %d features",
			size, batch, features)
	}
	steps := size / (batch * features)
	for i, length := range lengths {
		if length <= 0 {
			return 0, &LengthError{Index: i, Input: length, Output: length}
		} else if length > steps {
			return 0, inputErrorf("sequence %d: length %d exceeds %d timesteps", i,
				length, steps)
		}
	}
	if c := in.Output().Creator(); !sameCreator(c, l.Config.Creator) {
		return 0, inputErrorf("input creator %T does not match listener creator %T", c,
			l.Config.Creator)
	}
	return steps, nil
}

// checkStages makes sure that no stage of the convolution
// stack produces empty images for inputs with the given
// number of timesteps.
func (l *Listener) checkStages(steps int) error {
	for _, shape := range l.Conv.Shapes(l.imageShape(steps)) {
		if shape.Size() == 0 {
			return &LengthError{Index: 0, Input: steps, Output: shape.Along(l.Conv.TimeAxis)}
		}
	}
	return nil
}

func maxLength(lengths []int) int {
	var res int
	for _, l := range lengths {
		if l > res {
			res = l
		}
	}
	return res
}

// imageShape gives the shape of an input image with the
// given number of timesteps.
func (l *Listener) imageShape(steps int) Shape {
	if l.Conv.TimeAxis == AxisX {
		return Shape{Width: steps, Height: l.Config.InputSize, Depth: 1}
	}
	return Shape{Width: l.Config.InputSize, Height: steps, Depth: 1}
}

// sameCreator checks that two creators use the same
// numeric type.
func sameCreator(c1, c2 anyvec.Creator) bool {
	return reflect.TypeOf(c1.MakeNumeric(0)) == reflect.TypeOf(c2.MakeNumeric(0))
}
