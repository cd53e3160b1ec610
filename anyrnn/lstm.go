package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anyvec"
)

const lstmForgetBias = 1

// LSTM is a long short-term memory block.
//
// At every timestep it computes
//
//     i = sigmoid(Wii*x + bii + Whi*h + bhi)
//     f = sigmoid(Wif*x + bif + Whf*h + bhf)
//     g = tanh(Wig*x + big + Whg*h + bhg)
//     o = sigmoid(Wio*x + bio + Who*h + bho)
//     c' = f*c + i*g
//     h' = o*tanh(c')
//
// and outputs h'.
// The state of each sequence is the concatenation of h
// and c, and it starts at zero.
type LSTM struct {
	InCount    int
	StateCount int

	Input  *Gate
	Forget *Gate
	Cell   *Gate
	Output *Gate
}

// NewLSTM creates an LSTM with randomized weights and a
// positive forget gate bias.
func NewLSTM(c anyvec.Creator, in, state int) *LSTM {
	res := &LSTM{
		InCount:    in,
		StateCount: state,
		Input:      NewGate(c, in, state, anylisten.Sigmoid),
		Forget:     NewGate(c, in, state, anylisten.Sigmoid),
		Cell:       NewGate(c, in, state, anylisten.Tanh),
		Output:     NewGate(c, in, state, anylisten.Sigmoid),
	}
	res.Forget.InputBiases.Vector.AddScalar(c.MakeNumeric(lstmForgetBias))
	return res
}

// Start produces a zero start state.
func (l *LSTM) Start(n int) State {
	return l.funcBlock().Start(n)
}

// PropagateStart back-propagates through the start state,
// which has no parameters.
func (l *LSTM) PropagateStart(s StateGrad, g anydiff.Grad) {
	l.funcBlock().PropagateStart(s, g)
}

// Step applies the block for a single timestep.
func (l *LSTM) Step(s State, in anyvec.Vector) Res {
	return l.funcBlock().Step(s, in)
}

// Parameters returns the parameters of every gate.
func (l *LSTM) Parameters() []*anydiff.Var {
	return anylisten.AllParameters(l.Input, l.Forget, l.Cell, l.Output)
}

func (l *LSTM) funcBlock() *FuncBlock {
	return &FuncBlock{
		Func: func(in, state anydiff.Res, n int) (anydiff.Res, anydiff.Res) {
			h, c := splitStates(state, n, l.StateCount)
			newCell := anydiff.Add(
				anydiff.Mul(l.Forget.Apply(in, h, n), c),
				anydiff.Mul(l.Input.Apply(in, h, n), l.Cell.Apply(in, h, n)),
			)
			newHidden := anydiff.Mul(l.Output.Apply(in, h, n), anydiff.Tanh(newCell))
			return newHidden, joinStates(newHidden, newCell, n)
		},
		MakeStart: func(n int) anydiff.Res {
			return zeroStart(l.Input.InputWeights.Vector.Creator(), n, 2*l.StateCount)
		},
	}
}
