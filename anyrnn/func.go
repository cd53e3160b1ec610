package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A FuncBlock is a Block defined by a differentiable step
// function.
//
// States are stored as one row per present sequence, so
// Func sees a batch which shrinks as sequences end.
type FuncBlock struct {
	// Func computes the output and the new state of a step
	// for batch sequences.
	Func func(in, state anydiff.Res, batch int) (out, newState anydiff.Res)

	// MakeStart creates the start state of n sequences.
	MakeStart func(n int) anydiff.Res
}

// Start creates a *FuncBlockState with every sequence
// present.
func (f *FuncBlock) Start(n int) State {
	start := f.MakeStart(n)
	present := make(PresentMap, n)
	for i := range present {
		present[i] = true
	}
	return &FuncBlockState{
		VecState: &VecState{Vector: start.Output(), PresentMap: present},
		V:        start.Vars(),
		StartRes: start,
	}
}

// PropagateStart back-propagates through the result of
// MakeStart.
func (f *FuncBlock) PropagateStart(s StateGrad, g anydiff.Grad) {
	grad := s.(*FuncBlockState)
	grad.StartRes.Propagate(grad.Vector, g)
}

// Step runs Func on the present sequences.
func (f *FuncBlock) Step(s State, in anyvec.Vector) Res {
	prev := s.(*FuncBlockState)
	inVar := anydiff.NewVar(in)
	stateVar := anydiff.NewVar(prev.Vector)
	out, next := f.Func(inVar, stateVar, prev.PresentMap.NumPresent())

	// The stand-in variables are not real dependencies.
	stateVars := anydiff.MergeVarSets(prev.V, next.Vars())
	allVars := anydiff.MergeVarSets(stateVars, out.Vars())
	for _, vars := range []anydiff.VarSet{stateVars, allVars} {
		vars.Del(inVar)
		vars.Del(stateVar)
	}

	return &funcStepRes{
		InVar:    inVar,
		StateVar: stateVar,
		Out:      out,
		Next:     next,
		NewState: prev.withVector(next.Output(), stateVars),
		V:        allVars,
	}
}

// FuncBlockState is the State and StateGrad of a
// FuncBlock.
type FuncBlockState struct {
	*VecState

	// V contains the variables the state depends on.
	V anydiff.VarSet

	StartRes anydiff.Res
}

// Reduce drops the rows of sequences which are not in p.
func (f *FuncBlockState) Reduce(p PresentMap) State {
	res := *f
	res.VecState = f.VecState.Reduce(p).(*VecState)
	return &res
}

// Expand adds zero rows for sequences which are only in p.
func (f *FuncBlockState) Expand(p PresentMap) StateGrad {
	res := *f
	res.VecState = f.VecState.Expand(p).(*VecState)
	return &res
}

func (f *FuncBlockState) withVector(v anyvec.Vector, vars anydiff.VarSet) *FuncBlockState {
	return &FuncBlockState{
		VecState: &VecState{Vector: v, PresentMap: f.PresentMap},
		V:        vars,
		StartRes: f.StartRes,
	}
}

type funcStepRes struct {
	InVar    *anydiff.Var
	StateVar *anydiff.Var
	Out      anydiff.Res
	Next     anydiff.Res
	NewState *FuncBlockState
	V        anydiff.VarSet
}

func (f *funcStepRes) State() State {
	return f.NewState
}

func (f *funcStepRes) Output() anyvec.Vector {
	return f.Out.Output()
}

func (f *funcStepRes) Vars() anydiff.VarSet {
	return f.V
}

func (f *funcStepRes) Propagate(u anyvec.Vector, s StateGrad,
	g anydiff.Grad) (anyvec.Vector, StateGrad) {
	c := u.Creator()
	g[f.InVar] = c.MakeVector(f.InVar.Vector.Len())
	g[f.StateVar] = c.MakeVector(f.StateVar.Vector.Len())

	f.Out.Propagate(u, g)
	if s != nil {
		f.Next.Propagate(s.(*FuncBlockState).Vector, g)
	}

	inGrad, stateGrad := g[f.InVar], g[f.StateVar]
	delete(g, f.InVar)
	delete(g, f.StateVar)
	return inGrad, f.NewState.withVector(stateGrad, nil)
}
