package anyrnn

import (
	"testing"

	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anylisten"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestBidirDirections(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, _ := randomTestSequence(c, 2)
	b := &Bidir{
		Forward:  NewGRU(c, 2, 3),
		Backward: NewGRU(c, 2, 3),
		Mixer:    &anylisten.ConcatMixer{},
	}
	forw, back := b.Directions(inSeq)
	if !seqsEquivalent(forw.Output(), Map(inSeq, b.Forward).Output()) {
		t.Error("forward direction mismatch")
	}
	expectedBack := anyseq.Reverse(Map(anyseq.Reverse(inSeq), b.Backward)).Output()
	if !seqsEquivalent(back.Output(), expectedBack) {
		t.Error("backward direction mismatch")
	}

	mixed := b.Apply(inSeq).Output()
	for i, batch := range mixed {
		n := PresentMap(batch.Present).NumPresent()
		if batch.Packed.Len() != n*6 {
			t.Errorf("step %d: expected %d outputs but got %d", i, n*6, batch.Packed.Len())
		}
		forwPart := forw.Output()[i].Packed.Data().([]float64)
		backPart := back.Output()[i].Packed.Data().([]float64)
		data := batch.Packed.Data().([]float64)
		for j := 0; j < n; j++ {
			for k := 0; k < 3; k++ {
				if data[j*6+k] != forwPart[j*3+k] || data[j*6+3+k] != backPart[j*3+k] {
					t.Fatalf("step %d sample %d: bad concatenation", i, j)
				}
			}
		}
	}
}

func TestBidirProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 2)
	b := &Bidir{
		Forward:  NewLSTM(c, 2, 2),
		Backward: NewVanilla(c, 2, 1, anylisten.Tanh),
		Mixer:    &anylisten.ConcatMixer{},
	}
	for _, p := range b.Parameters() {
		anyvec.Rand(p.Vector, anyvec.Normal, nil)
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return b.Apply(inSeq)
		},
		V: append(inVars, b.Parameters()...),
	}
	checker.FullCheck(t)
}
