package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anyvec"
)

// Vanilla is a basic RNN block.
//
// At every timestep it computes
//
//     h' = act(Wi*x + bi + Wh*h + bh)
//
// and outputs h'.
// The state starts at zero.
type Vanilla struct {
	InCount    int
	StateCount int

	Gate *Gate
}

// NewVanilla creates a Vanilla block with randomized
// weights.
func NewVanilla(c anyvec.Creator, in, state int, activation anylisten.Layer) *Vanilla {
	return &Vanilla{
		InCount:    in,
		StateCount: state,
		Gate:       NewGate(c, in, state, activation),
	}
}

// Start produces a zero start state.
func (v *Vanilla) Start(n int) State {
	return v.funcBlock().Start(n)
}

// PropagateStart back-propagates through the start state,
// which has no parameters.
func (v *Vanilla) PropagateStart(s StateGrad, g anydiff.Grad) {
	v.funcBlock().PropagateStart(s, g)
}

// Step applies the block for a single timestep.
func (v *Vanilla) Step(s State, in anyvec.Vector) Res {
	return v.funcBlock().Step(s, in)
}

// Parameters returns the parameters of the block.
func (v *Vanilla) Parameters() []*anydiff.Var {
	return v.Gate.Parameters()
}

func (v *Vanilla) funcBlock() *FuncBlock {
	return &FuncBlock{
		Func: func(in, state anydiff.Res, n int) (anydiff.Res, anydiff.Res) {
			newState := v.Gate.Apply(in, state, n)
			return newState, newState
		},
		MakeStart: func(n int) anydiff.Res {
			return zeroStart(v.Gate.InputWeights.Vector.Creator(), n, v.StateCount)
		},
	}
}
