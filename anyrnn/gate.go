package anyrnn

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anyvec"
)

// A Gate computes
//
//     act(Wi*input + bi + Ws*state + bs)
//
// for a batch of inputs and states.
// The input and state halves are also available
// separately for blocks like GRU which combine them in
// other ways.
type Gate struct {
	InCount    int
	StateCount int

	InputWeights *anydiff.Var
	InputBiases  *anydiff.Var
	StateWeights *anydiff.Var
	StateBiases  *anydiff.Var

	Activation anylisten.Layer
}

// NewGate creates a randomized Gate with zero biases.
func NewGate(c anyvec.Creator, in, state int, activation anylisten.Layer) *Gate {
	res := NewGateZero(c, in, state, activation)
	anyvec.Rand(res.InputWeights.Vector, anyvec.Normal, nil)
	anyvec.Rand(res.StateWeights.Vector, anyvec.Normal, nil)
	res.InputWeights.Vector.Scale(c.MakeNumeric(1 / math.Sqrt(float64(in))))
	res.StateWeights.Vector.Scale(c.MakeNumeric(1 / math.Sqrt(float64(state))))
	return res
}

// NewGateZero creates a zero'd Gate.
func NewGateZero(c anyvec.Creator, in, state int, activation anylisten.Layer) *Gate {
	return &Gate{
		InCount:      in,
		StateCount:   state,
		InputWeights: anydiff.NewVar(c.MakeVector(in * state)),
		InputBiases:  anydiff.NewVar(c.MakeVector(state)),
		StateWeights: anydiff.NewVar(c.MakeVector(state * state)),
		StateBiases:  anydiff.NewVar(c.MakeVector(state)),
		Activation:   activation,
	}
}

// Apply applies the gate to a batch of n inputs and
// states.
func (g *Gate) Apply(in, state anydiff.Res, n int) anydiff.Res {
	return g.Activation.Apply(anydiff.Add(g.InputPart(in), g.StatePart(state)), n)
}

// InputPart computes Wi*input + bi.
func (g *Gate) InputPart(in anydiff.Res) anydiff.Res {
	return anydiff.AddRepeated(applyWeights(g.InCount, g.StateCount, g.InputWeights, in),
		g.InputBiases)
}

// StatePart computes Ws*state + bs.
func (g *Gate) StatePart(state anydiff.Res) anydiff.Res {
	return anydiff.AddRepeated(applyWeights(g.StateCount, g.StateCount, g.StateWeights,
		state), g.StateBiases)
}

// Parameters returns the weights and biases of the gate.
func (g *Gate) Parameters() []*anydiff.Var {
	return []*anydiff.Var{g.InputWeights, g.InputBiases, g.StateWeights, g.StateBiases}
}

func applyWeights(in, out int, weights anydiff.Res, batch anydiff.Res) anydiff.Res {
	weightMat := &anydiff.Matrix{Data: weights, Rows: out, Cols: in}
	inMat := &anydiff.Matrix{Data: batch, Rows: batch.Output().Len() / in, Cols: in}
	return anydiff.MatMul(false, true, inMat, weightMat).Data
}

// zeroStart creates a batch of n zero state vectors.
func zeroStart(c anyvec.Creator, n, size int) anydiff.Res {
	return anydiff.NewConst(c.MakeVector(n * size))
}

// splitStates splits a batch of n concatenated [a, b]
// state vectors into a batch of a-vectors and a batch of
// b-vectors.
func splitStates(joined anydiff.Res, n, aSize int) (a, b anydiff.Res) {
	cols := joined.Output().Len() / n
	colMajor := anydiff.Transpose(&anydiff.Matrix{Data: joined, Rows: n, Cols: cols}).Data
	return anydiff.Pool(colMajor, func(colMajor anydiff.Res) anydiff.Res {
			aT := anydiff.Slice(colMajor, 0, aSize*n)
			return anydiff.Transpose(&anydiff.Matrix{Data: aT, Rows: aSize, Cols: n}).Data
		}), anydiff.Pool(colMajor, func(colMajor anydiff.Res) anydiff.Res {
			bT := anydiff.Slice(colMajor, aSize*n, cols*n)
			return anydiff.Transpose(&anydiff.Matrix{Data: bT, Rows: cols - aSize,
				Cols: n}).Data
		})
}

// joinStates is the inverse of splitStates.
func joinStates(a, b anydiff.Res, n int) anydiff.Res {
	aSize := a.Output().Len() / n
	bSize := b.Output().Len() / n
	aT := anydiff.Transpose(&anydiff.Matrix{Data: a, Rows: n, Cols: aSize}).Data
	bT := anydiff.Transpose(&anydiff.Matrix{Data: b, Rows: n, Cols: bSize}).Data
	joinedT := anydiff.Concat(aT, bT)
	return anydiff.Transpose(&anydiff.Matrix{Data: joinedT, Rows: aSize + bSize,
		Cols: n}).Data
}
