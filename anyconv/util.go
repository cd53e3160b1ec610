package anyconv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// columnMoment sums the rows of a row-major matrix (or the
// squares of its entries) and scales the sum.
type columnMoment struct {
	In     anydiff.Res
	Square bool
	Scale  float64
	Out    anyvec.Vector
}

// negMeanRows computes the negative of the mean of the
// rows in a row-major matrix.
//
// The sum of all rows is divided by rows rather than the
// true row count, which lets callers exclude rows that
// are known to be zero.
func negMeanRows(in anydiff.Res, cols, rows int) anydiff.Res {
	return newColumnMoment(in, cols, false, -1/float64(rows))
}

// meanSquare is like negMeanRows, but it squares the rows
// before taking their (positive) mean.
func meanSquare(in anydiff.Res, cols, rows int) anydiff.Res {
	return newColumnMoment(in, cols, true, 1/float64(rows))
}

func newColumnMoment(in anydiff.Res, cols int, square bool, scale float64) *columnMoment {
	if in.Output().Len()%cols != 0 {
		panic("column count must divide input size")
	}
	entries := in.Output().Copy()
	if square {
		entries.Mul(in.Output())
	}
	out := anyvec.SumRows(entries, cols)
	out.Scale(out.Creator().MakeNumeric(scale))
	return &columnMoment{In: in, Square: square, Scale: scale, Out: out}
}

func (c *columnMoment) Output() anyvec.Vector {
	return c.Out
}

func (c *columnMoment) Vars() anydiff.VarSet {
	return c.In.Vars()
}

func (c *columnMoment) Propagate(u anyvec.Vector, g anydiff.Grad) {
	scale := c.Scale
	if c.Square {
		scale *= 2
	}
	u.Scale(u.Creator().MakeNumeric(scale))
	downstream := u.Creator().MakeVector(c.In.Output().Len())
	anyvec.AddRepeated(downstream, u)
	if c.Square {
		downstream.Mul(c.In.Output())
	}
	c.In.Propagate(downstream, g)
}

// batchMap applies a Mapper to every chunk of a batch.
func batchMap(m anyvec.Mapper, in anyvec.Vector) anyvec.Vector {
	return mapChunks(in, m.InSize(), m.OutSize(), m.Map)
}

// batchMapTranspose applies a Mapper's transpose to every
// chunk of a batch.
func batchMapTranspose(m anyvec.Mapper, in anyvec.Vector) anyvec.Vector {
	return mapChunks(in, m.OutSize(), m.InSize(), m.MapTranspose)
}

func mapChunks(in anyvec.Vector, inSize, outSize int,
	f func(in, out anyvec.Vector)) anyvec.Vector {
	c := in.Creator()
	chunks := make([]anyvec.Vector, in.Len()/inSize)
	for i := range chunks {
		chunks[i] = c.MakeVector(outSize)
		f(in.Slice(i*inSize, (i+1)*inSize), chunks[i])
	}
	return c.Concat(chunks...)
}
