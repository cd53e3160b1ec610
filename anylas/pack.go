package anylas

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anylisten/anyrnn"
	"github.com/unixpickle/anyvec"
)

// packTable lists the components of a (batch, time, width)
// tensor in packed order: timestep by timestep, and for
// each timestep, every sequence which is still present.
// It also returns the presence map of every timestep.
func packTable(lengths []int, steps, width int) ([]int, [][]bool) {
	var table []int
	var presents [][]bool
	for t := 0; t < steps; t++ {
		present := anyrnn.LengthsPresent(lengths, t)
		if present.NumPresent() == 0 {
			break
		}
		for b, p := range present {
			if p {
				offset := (b*steps + t) * width
				for i := 0; i < width; i++ {
					table = append(table, offset+i)
				}
			}
		}
		presents = append(presents, present)
	}
	return table, presents
}

// packSeq converts a right-padded (batch, time, width)
// tensor into a sequence batch, where sequence b is
// present for the first lengths[b] timesteps.
func packSeq(in anydiff.Res, lengths []int, steps, width int) anyseq.Seq {
	if in.Output().Len() != len(lengths)*steps*width {
		panic("packed input size mismatch")
	}
	table, presents := packTable(lengths, steps, width)
	c := in.Output().Creator()
	mapper := c.MakeMapper(in.Output().Len(), table)
	packed := c.MakeVector(mapper.OutSize())
	mapper.Map(in.Output(), packed)

	res := &packRes{In: in, Mapper: mapper}
	var offset int
	for _, present := range presents {
		size := anyrnn.PresentMap(present).NumPresent() * width
		res.Out = append(res.Out, &anyseq.Batch{
			Packed:  packed.Slice(offset, offset+size),
			Present: present,
		})
		offset += size
	}
	return res
}

type packRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	Out    []*anyseq.Batch
}

func (p *packRes) Output() []*anyseq.Batch {
	return p.Out
}

func (p *packRes) Creator() anyvec.Creator {
	return p.In.Output().Creator()
}

func (p *packRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *packRes) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	c := p.In.Output().Creator()
	down := c.MakeVector(p.Mapper.InSize())
	if len(u) > 0 {
		p.Mapper.MapTranspose(concatBatches(c, u), down)
	}
	p.In.Propagate(down, g)
}

// padSeq is the inverse of packSeq.
// Every padded position of the result is zero.
func padSeq(in anyseq.Seq, lengths []int, steps, width int) anydiff.Res {
	table, presents := packTable(lengths, steps, width)
	out := in.Output()
	if len(out) != len(presents) {
		panic("sequence length mismatch")
	}
	c := creatorFor(out)
	mapper := c.MakeMapper(len(lengths)*steps*width, table)
	padded := c.MakeVector(mapper.InSize())
	mapper.MapTranspose(concatBatches(c, out), padded)
	return &padRes{In: in, Mapper: mapper, OutVec: padded}
}

type padRes struct {
	In     anyseq.Seq
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func (p *padRes) Output() anyvec.Vector {
	return p.OutVec
}

func (p *padRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *padRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	packed := u.Creator().MakeVector(p.Mapper.OutSize())
	p.Mapper.Map(u, packed)
	var down []*anyseq.Batch
	var offset int
	for _, batch := range p.In.Output() {
		size := batch.Packed.Len()
		down = append(down, &anyseq.Batch{
			Packed:  packed.Slice(offset, offset+size),
			Present: batch.Present,
		})
		offset += size
	}
	p.In.Propagate(down, g)
}

// selectSteps picks one timestep from every sequence of a
// (batch, time, width) tensor.
// If last is true, the final valid timestep is used;
// otherwise, the first timestep is used.
func selectSteps(in anydiff.Res, lengths []int, steps, width int, last bool) anydiff.Res {
	table := make([]int, 0, len(lengths)*width)
	for b, l := range lengths {
		t := 0
		if last {
			t = l - 1
		}
		offset := (b*steps + t) * width
		for i := 0; i < width; i++ {
			table = append(table, offset+i)
		}
	}
	return gather(in, table)
}

func concatBatches(c anyvec.Creator, batches []*anyseq.Batch) anyvec.Vector {
	vecs := make([]anyvec.Vector, len(batches))
	for i, b := range batches {
		vecs[i] = b.Packed
	}
	return c.Concat(vecs...)
}

func creatorFor(batches []*anyseq.Batch) anyvec.Creator {
	if len(batches) == 0 {
		panic("cannot determine creator of empty sequence")
	}
	return batches[0].Packed.Creator()
}
