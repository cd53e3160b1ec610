package anyconv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Padding surrounds each image in a batch with a border of
// zeros.
type Padding struct {
	InputWidth  int
	InputHeight int
	InputDepth  int

	PaddingTop    int
	PaddingRight  int
	PaddingBottom int
	PaddingLeft   int

	// embed places an unpadded image inside a padded one.
	embed anyvec.Mapper
}

// symmetricPadding creates a Padding layer that adds the
// same border to both sides of each axis.
func symmetricPadding(c *Conv) *Padding {
	return &Padding{
		InputWidth:    c.InputWidth,
		InputHeight:   c.InputHeight,
		InputDepth:    c.InputDepth,
		PaddingTop:    c.PaddingY,
		PaddingBottom: c.PaddingY,
		PaddingLeft:   c.PaddingX,
		PaddingRight:  c.PaddingX,
	}
}

// OutputWidth returns the width of the padded tensor.
func (p *Padding) OutputWidth() int {
	return p.InputWidth + p.PaddingLeft + p.PaddingRight
}

// OutputHeight returns the height of the padded tensor.
func (p *Padding) OutputHeight() int {
	return p.InputHeight + p.PaddingTop + p.PaddingBottom
}

// Prepare builds the layer's lookup table ahead of time.
// Apply is only safe to call concurrently after Prepare.
func (p *Padding) Prepare(c anyvec.Creator) {
	outWidth := p.OutputWidth() * p.InputDepth
	rowSize := p.InputWidth * p.InputDepth
	table := make([]int, 0, rowSize*p.InputHeight)
	for y := 0; y < p.InputHeight; y++ {
		start := (y+p.PaddingTop)*outWidth + p.PaddingLeft*p.InputDepth
		for i := 0; i < rowSize; i++ {
			table = append(table, start+i)
		}
	}
	p.embed = c.MakeMapper(outWidth*p.OutputHeight(), table)
}

// Apply pads a batch of images.
func (p *Padding) Apply(in anydiff.Res, batch int) anydiff.Res {
	if p.embed == nil {
		p.Prepare(in.Output().Creator())
	}
	if in.Output().Len() != batch*p.embed.OutSize() {
		panic("incorrect input size")
	}
	return &paddingRes{
		In:     in,
		Embed:  p.embed,
		OutVec: batchMapTranspose(p.embed, in.Output()),
	}
}

type paddingRes struct {
	In     anydiff.Res
	Embed  anyvec.Mapper
	OutVec anyvec.Vector
}

func (p *paddingRes) Output() anyvec.Vector {
	return p.OutVec
}

func (p *paddingRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

// Propagate crops the border off of the upstream gradient.
func (p *paddingRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	p.In.Propagate(batchMap(p.Embed, u), g)
}
