package anylas

import (
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anylisten/anyrnn"
	"github.com/unixpickle/anyvec"
)

// Recurrent is a stack of (possibly bidirectional)
// recurrent layers.
type Recurrent struct {
	InputWidth int
	HiddenDim  int

	// Forward contains the block of every layer.
	Forward []anyrnn.Block

	// Backward contains the reverse-direction block of
	// every layer, or is nil for unidirectional stacks.
	Backward []anyrnn.Block

	// Dropout is applied between layers.
	Dropout *anylisten.Dropout

	Creator anyvec.Creator
	Logger  logrus.FieldLogger
}

// NewRecurrent creates a randomized recurrent stack.
func NewRecurrent(c anyvec.Creator, cell string, inWidth, hidden, layers int,
	bidir bool, dropoutP float64, logger logrus.FieldLogger) (*Recurrent, error) {
	res := &Recurrent{
		InputWidth: inWidth,
		HiddenDim:  hidden,
		Dropout:    &anylisten.Dropout{KeepProb: 1 - dropoutP},
		Creator:    c,
		Logger:     logger,
	}
	width := inWidth
	for i := 0; i < layers; i++ {
		block, err := newBlock(c, cell, width, hidden)
		if err != nil {
			return nil, err
		}
		res.Forward = append(res.Forward, block)
		if bidir {
			block, _ = newBlock(c, cell, width, hidden)
			res.Backward = append(res.Backward, block)
		}
		width = res.OutputWidth()
	}
	if dropoutP > 0 && layers == 1 {
		logger.WithFields(logrus.Fields{
			"dropout_p":  dropoutP,
			"num_layers": layers,
		}).Warn("dropout has no effect with a single recurrent layer")
	}
	return res, nil
}

func newBlock(c anyvec.Creator, cell string, in, hidden int) (anyrnn.Block, error) {
	switch cell {
	case RNNLSTM:
		return anyrnn.NewLSTM(c, in, hidden), nil
	case RNNGRU:
		return anyrnn.NewGRU(c, in, hidden), nil
	case RNNVanilla:
		return anyrnn.NewVanilla(c, in, hidden, anylisten.Tanh), nil
	default:
		return nil, &ConfigError{Option: "rnn_type", Value: cell}
	}
}

// Bidirectional reports whether the layers run in both
// directions.
func (r *Recurrent) Bidirectional() bool {
	return r.Backward != nil
}

// OutputWidth is the size of each output timestep.
func (r *Recurrent) OutputWidth() int {
	if r.Bidirectional() {
		return 2 * r.HiddenDim
	}
	return r.HiddenDim
}

// SetTraining enables or disables inter-layer dropout.
func (r *Recurrent) SetTraining(training bool) {
	r.Dropout.Enabled = training
}

// Apply runs every layer on a packed sequence batch.
//
// The lengths and steps describe the padded layout that in
// was packed from.
// The result includes the final output of every layer and
// direction, ordered by layer and then by direction
// (forward before backward).
// A forward block's final output is its output at the
// last valid timestep; a backward block's is its output at
// the first timestep.
func (r *Recurrent) Apply(in anyseq.Seq, lengths []int, steps int) (anyseq.Seq,
	[]anydiff.Res, error) {
	if out := in.Output(); len(out) > 0 {
		width := out[0].Packed.Len() / anyrnn.PresentMap(out[0].Present).NumPresent()
		if width != r.InputWidth {
			return nil, nil, &DimensionError{
				Expected: r.InputWidth,
				Actual:   width,
				Reason:   "recurrent input width",
			}
		}
	}

	var hidden []anydiff.Res
	last := func(s anyseq.Seq, fromEnd bool) anydiff.Res {
		padded := padSeq(s, lengths, steps, r.HiddenDim)
		return selectSteps(padded, lengths, steps, r.HiddenDim, fromEnd)
	}

	seq := in
	for i, forward := range r.Forward {
		if i > 0 && r.Dropout.Enabled {
			seq = anyseq.Map(seq, r.Dropout.Apply)
		}
		if !r.Bidirectional() {
			seq = anyrnn.Map(seq, forward)
			hidden = append(hidden, last(seq, true))
			continue
		}
		bidir := &anyrnn.Bidir{
			Forward:  forward,
			Backward: r.Backward[i],
			Mixer:    &anylisten.ConcatMixer{},
		}
		forwSeq, backSeq := bidir.Directions(seq)
		hidden = append(hidden, last(forwSeq, true), last(backSeq, false))
		seq = bidir.Mix(forwSeq, backSeq)
	}
	return seq, hidden, nil
}

// Compact checks that every parameter is stored with the
// stack's Creator, logging a warning for each one which is
// not.
// It never changes the stack's outputs.
func (r *Recurrent) Compact() {
	for i, p := range r.Parameters() {
		if !reflect.DeepEqual(p.Vector.Creator(), r.Creator) {
			r.Logger.WithFields(logrus.Fields{
				"parameter": i,
				"creator":   reflect.TypeOf(p.Vector.Creator()).String(),
			}).Warn("recurrent parameter is not stored with the configured creator")
		}
	}
}

// Parameters returns the parameters of every block.
func (r *Recurrent) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for i, f := range r.Forward {
		res = append(res, anylisten.AllParameters(f)...)
		if r.Bidirectional() {
			res = append(res, anylisten.AllParameters(r.Backward[i])...)
		}
	}
	return res
}
