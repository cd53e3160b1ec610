// Package anyrnn implements recurrent blocks that run over
// packed batches of variable-length sequences.
//
// At every timestep, only the sequences which have not
// ended yet are present in the batch, and the states of the
// others are dropped.
package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A PresentMap has one entry per sequence in a batch,
// which is true if the sequence is present.
type PresentMap []bool

// LengthsPresent creates the PresentMap for timestep t of
// sequences with the given lengths.
func LengthsPresent(lengths []int, t int) PresentMap {
	res := make(PresentMap, len(lengths))
	for i, l := range lengths {
		res[i] = l > t
	}
	return res
}

// NumPresent counts the present sequences.
func (p PresentMap) NumPresent() int {
	var n int
	for _, x := range p {
		if x {
			n++
		}
	}
	return n
}

// Contains checks if every sequence present in sub is also
// present in p.
func (p PresentMap) Contains(sub PresentMap) bool {
	if len(sub) != len(p) {
		return false
	}
	for i, x := range sub {
		if x && !p[i] {
			return false
		}
	}
	return true
}

// A State is the internal state of a Block for the
// present sequences of a batch.
type State interface {
	Present() PresentMap

	// Reduce drops the states of the sequences which are
	// not present in the argument.
	// The argument must be contained in Present().
	Reduce(PresentMap) State
}

// A StateGrad is an upstream gradient for a State.
type StateGrad interface {
	Present() PresentMap

	// Expand adds zero gradients for the sequences which are
	// present in the argument but not in Present().
	// It undoes State.Reduce.
	Expand(PresentMap) StateGrad
}

// A Block is one recurrent step function.
type Block interface {
	// Start creates the initial states for n sequences.
	Start(n int) State

	// PropagateStart back-propagates through a State that
	// came from Start.
	PropagateStart(s StateGrad, g anydiff.Grad)

	// Step applies the block to the inputs of the present
	// sequences at one timestep.
	Step(s State, in anyvec.Vector) Res
}

// A Res is the result of one Block step.
type Res interface {
	State() State
	Output() anyvec.Vector

	// Vars includes the variables of every earlier step.
	Vars() anydiff.VarSet

	// Propagate takes the upstream gradients for the output
	// and for the new state, and returns the gradients for
	// the input and for the previous state.
	//
	// The state gradient s is nil when nothing depends on
	// the new state.
	// Propagate may modify u and s.
	Propagate(u anyvec.Vector, s StateGrad, g anydiff.Grad) (anyvec.Vector, StateGrad)
}
