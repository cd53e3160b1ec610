// Package anylisten provides the building blocks for
// length-aware acoustic encoders.
// It includes sub-packages for convolutional layers,
// recurrent blocks, and the Listener encoder itself.
package anylisten

import "github.com/unixpickle/anydiff"

// A Parameterizer is anything with learnable variables.
//
// The parameters of a Parameterizer must be in the same
// order every time Parameters() is called.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer is a composable computation unit.
//
// A Layer's Apply method is inherently batched.
// The input's length must be divisible by the batch size,
// since the batch size indicates how many equally-long
// vectors are packed into the input vector.
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// AllParameters collects the parameters of every object
// which implements Parameterizer, in order.
// Other objects are ignored.
func AllParameters(objs ...interface{}) []*anydiff.Var {
	var res []*anydiff.Var
	for _, x := range objs {
		if p, ok := x.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}
