package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// Map runs a Block over a packed sequence batch.
//
// Sequences start in the Block's start state, and their
// states are dropped from the batch once they end.
func Map(s anyseq.Seq, b Block) anyseq.Seq {
	steps := s.Output()
	res := &mapRes{In: s, Block: b, V: s.Vars()}
	if len(steps) == 0 {
		return res
	}

	res.N = len(steps[0].Present)
	state := b.Start(res.N)
	for _, step := range steps {
		if PresentMap(step.Present).NumPresent() != state.Present().NumPresent() {
			state = state.Reduce(step.Present)
		}
		stepRes := b.Step(state, step.Packed)
		res.Steps = append(res.Steps, stepRes)
		res.Out = append(res.Out, &anyseq.Batch{
			Packed:  stepRes.Output(),
			Present: step.Present,
		})
		res.V = anydiff.MergeVarSets(res.V, stepRes.Vars())
		state = stepRes.State()
	}
	return res
}

type mapRes struct {
	In    anyseq.Seq
	Block Block
	Steps []Res
	Out   []*anyseq.Batch
	V     anydiff.VarSet

	// N is the number of sequences in the batch.
	N int
}

func (m *mapRes) Output() []*anyseq.Batch {
	return m.Out
}

func (m *mapRes) Creator() anyvec.Creator {
	return m.In.Creator()
}

func (m *mapRes) Vars() anydiff.VarSet {
	return m.V
}

func (m *mapRes) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if len(u) == 0 {
		return
	}

	var down []*anyseq.Batch
	if g.Intersects(m.In.Vars()) {
		down = make([]*anyseq.Batch, len(u))
	}

	var stateGrad StateGrad
	for i := len(m.Steps) - 1; i >= 0; i-- {
		step := m.Steps[i]
		present := step.State().Present()
		if stateGrad != nil && stateGrad.Present().NumPresent() != present.NumPresent() {
			stateGrad = stateGrad.Expand(present)
		}
		inGrad, prevGrad := step.Propagate(u[i].Packed, stateGrad, g)
		if down != nil {
			down[i] = &anyseq.Batch{Packed: inGrad, Present: u[i].Present}
		}
		stateGrad = prevGrad
	}

	full := make(PresentMap, m.N)
	for i := range full {
		full[i] = true
	}
	if stateGrad.Present().NumPresent() != m.N {
		stateGrad = stateGrad.Expand(full)
	}
	m.Block.PropagateStart(stateGrad, g)

	if down != nil {
		m.In.Propagate(down, g)
	}
}
