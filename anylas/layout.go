package anylas

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// gatherRes selects components of its input in the order
// given by a mapping table.
type gatherRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

// gather produces a vector whose i-th component is
// in[table[i]].
func gather(in anydiff.Res, table []int) anydiff.Res {
	c := in.Output().Creator()
	mapper := c.MakeMapper(in.Output().Len(), table)
	out := c.MakeVector(mapper.OutSize())
	mapper.Map(in.Output(), out)
	return &gatherRes{In: in, Mapper: mapper, OutVec: out}
}

func (g *gatherRes) Output() anyvec.Vector {
	return g.OutVec
}

func (g *gatherRes) Vars() anydiff.VarSet {
	return g.In.Vars()
}

func (g *gatherRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	down := u.Creator().MakeVector(g.Mapper.InSize())
	g.Mapper.MapTranspose(u, down)
	g.In.Propagate(down, grad)
}

// transposeTable maps sample-major (time, feature) rows to
// (feature, time) images.
func transposeTable(batch, steps, features int) []int {
	table := make([]int, 0, batch*steps*features)
	for b := 0; b < batch; b++ {
		offset := b * steps * features
		for f := 0; f < features; f++ {
			for t := 0; t < steps; t++ {
				table = append(table, offset+t*features+f)
			}
		}
	}
	return table
}

// flattenTable maps images to sample-major rows with one
// row per timestep.
//
// Each row lists the non-time axis of one channel after
// another, so component c*rows+r of a row comes from
// channel c at position r.
func flattenTable(batch int, shape Shape, axis Axis) []int {
	steps, rows := shape.Along(axis), shape.Across(axis)
	table := make([]int, 0, batch*shape.Size())
	for b := 0; b < batch; b++ {
		offset := b * shape.Size()
		for t := 0; t < steps; t++ {
			for z := 0; z < shape.Depth; z++ {
				for r := 0; r < rows; r++ {
					x, y := t, r
					if axis == AxisY {
						x, y = r, t
					}
					table = append(table, offset+(y*shape.Width+x)*shape.Depth+z)
				}
			}
		}
	}
	return table
}

// transposeFeatures converts a (batch, time, feature)
// tensor into a batch of (feature, time) images.
func transposeFeatures(in anydiff.Res, batch, steps, features int) anydiff.Res {
	return gather(in, transposeTable(batch, steps, features))
}

// flattenTime converts a batch of images into a
// (batch, time, depth*rows) tensor.
func flattenTime(in anydiff.Res, batch int, shape Shape, axis Axis) anydiff.Res {
	return gather(in, flattenTable(batch, shape, axis))
}
