package anylisten

import "github.com/unixpickle/anydiff"

// A Mixer combines batches of inputs from two different
// sources into a single vector.
type Mixer interface {
	Mix(in1, in2 anydiff.Res, batch int) anydiff.Res
}

// A ConcatMixer joins the n-th vector of one batch with the
// n-th vector of the other, producing
// [in1[0], in2[0], in1[1], in2[1], ...].
type ConcatMixer struct{}

// Mix concatenates the inputs sample by sample.
func (ConcatMixer) Mix(in1, in2 anydiff.Res, batch int) anydiff.Res {
	return anydiff.Pool(in1, func(in1 anydiff.Res) anydiff.Res {
		return anydiff.Pool(in2, func(in2 anydiff.Res) anydiff.Res {
			first, second := splitBatch(in1, batch), splitBatch(in2, batch)
			joined := make([]anydiff.Res, 0, 2*batch)
			for i := range first {
				joined = append(joined, first[i], second[i])
			}
			return anydiff.Concat(joined...)
		})
	})
}

func splitBatch(in anydiff.Res, batch int) []anydiff.Res {
	size := in.Output().Len() / batch
	res := make([]anydiff.Res, batch)
	for i := range res {
		res[i] = anydiff.Slice(in, i*size, (i+1)*size)
	}
	return res
}
