package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anylisten"
)

// Bidir runs one block over a sequence and another over
// the reversed sequence, then joins their outputs step by
// step.
//
// The Mixer receives the forward output first.
type Bidir struct {
	Forward  Block
	Backward Block
	Mixer    anylisten.Mixer
}

// Apply applies the bidirectional RNN.
func (b *Bidir) Apply(in anyseq.Seq) anyseq.Seq {
	return anyseq.Pool(in, func(in anyseq.Seq) anyseq.Seq {
		return b.Mix(b.Directions(in))
	})
}

// Directions evaluates both blocks without mixing them.
//
// The backward output is re-reversed, so timestep t of
// both results corresponds to timestep t of the input.
func (b *Bidir) Directions(in anyseq.Seq) (forward, backward anyseq.Seq) {
	forward = Map(in, b.Forward)
	backward = anyseq.Reverse(Map(anyseq.Reverse(in), b.Backward))
	return
}

// Mix combines the results of Directions with the Mixer.
func (b *Bidir) Mix(forward, backward anyseq.Seq) anyseq.Seq {
	return anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		return b.Mixer.Mix(v[0], v[1], n)
	}, forward, backward)
}

// Parameters returns the parameters of the blocks and
// Mixer if they implement anylisten.Parameterizer.
func (b *Bidir) Parameters() []*anydiff.Var {
	return anylisten.AllParameters(b.Forward, b.Backward, b.Mixer)
}
