package anylisten

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Dropout layer applies inverted dropout.
//
// While enabled, every component is zeroed with
// probability 1-KeepProb and the survivors are scaled by
// 1/KeepProb, so a disabled Dropout is the identity.
type Dropout struct {
	Enabled bool

	// The probability of keeping any given input.
	KeepProb float64
}

// Apply applies the layer.
func (d *Dropout) Apply(in anydiff.Res, n int) anydiff.Res {
	if !d.Enabled || d.KeepProb >= 1 {
		return in
	}
	c := in.Output().Creator()
	if d.KeepProb <= 0 {
		return anydiff.NewConst(c.MakeVector(in.Output().Len()))
	}
	mask := c.MakeVector(in.Output().Len())
	anyvec.Rand(mask, anyvec.Uniform, nil)
	anyvec.LessThan(mask, c.MakeNumeric(d.KeepProb))
	mask.Scale(c.MakeNumeric(1 / d.KeepProb))
	return anydiff.Mul(in, anydiff.NewConst(mask))
}
