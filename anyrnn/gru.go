package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anyvec"
)

// GRU is a gated recurrent unit.
//
// At every timestep it computes
//
//     r = sigmoid(Wir*x + bir + Whr*h + bhr)
//     z = sigmoid(Wiz*x + biz + Whz*h + bhz)
//     n = tanh(Win*x + bin + r*(Whn*h + bhn))
//     h' = (1-z)*n + z*h
//
// and outputs h', which is also the new state.
type GRU struct {
	InCount    int
	StateCount int

	Reset     *Gate
	Update    *Gate
	Candidate *Gate
}

// NewGRU creates a GRU with randomized weights.
func NewGRU(c anyvec.Creator, in, state int) *GRU {
	return &GRU{
		InCount:    in,
		StateCount: state,
		Reset:      NewGate(c, in, state, anylisten.Sigmoid),
		Update:     NewGate(c, in, state, anylisten.Sigmoid),
		Candidate:  NewGate(c, in, state, anylisten.Tanh),
	}
}

// Start produces a zero start state.
func (g *GRU) Start(n int) State {
	return g.funcBlock().Start(n)
}

// PropagateStart back-propagates through the start state,
// which has no parameters.
func (g *GRU) PropagateStart(s StateGrad, grad anydiff.Grad) {
	g.funcBlock().PropagateStart(s, grad)
}

// Step applies the block for a single timestep.
func (g *GRU) Step(s State, in anyvec.Vector) Res {
	return g.funcBlock().Step(s, in)
}

// Parameters returns the parameters of every gate.
func (g *GRU) Parameters() []*anydiff.Var {
	return anylisten.AllParameters(g.Reset, g.Update, g.Candidate)
}

func (g *GRU) funcBlock() *FuncBlock {
	return &FuncBlock{
		Func: func(in, state anydiff.Res, n int) (anydiff.Res, anydiff.Res) {
			reset := g.Reset.Apply(in, state, n)
			update := g.Update.Apply(in, state, n)
			candidate := g.Candidate.Activation.Apply(anydiff.Add(
				g.Candidate.InputPart(in),
				anydiff.Mul(reset, g.Candidate.StatePart(state)),
			), n)
			newState := anydiff.Pool(update, func(update anydiff.Res) anydiff.Res {
				return anydiff.Add(
					anydiff.Mul(anydiff.Complement(update), candidate),
					anydiff.Mul(update, state),
				)
			})
			return newState, newState
		},
		MakeStart: func(n int) anydiff.Res {
			return zeroStart(g.Reset.InputWeights.Vector.Creator(), n, g.StateCount)
		},
	}
}
