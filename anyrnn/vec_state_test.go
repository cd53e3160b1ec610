package anyrnn

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"
)

func TestLengthsPresent(t *testing.T) {
	lengths := []int{5, 3, 3, 1}
	expected := []PresentMap{
		{true, true, true, true},
		{true, true, true, false},
		{true, true, true, false},
		{true, false, false, false},
		{true, false, false, false},
		{false, false, false, false},
	}
	for step, exp := range expected {
		actual := LengthsPresent(lengths, step)
		if !reflect.DeepEqual(actual, exp) {
			t.Errorf("step %d: expected %v but got %v", step, exp, actual)
		}
	}
}

func TestPresentMapContains(t *testing.T) {
	p := PresentMap{true, false, true}
	if !p.Contains(PresentMap{true, false, false}) || !p.Contains(p) {
		t.Error("subsets should be contained")
	}
	if p.Contains(PresentMap{false, true, false}) {
		t.Error("absent sequence should not be contained")
	}
	if p.Contains(PresentMap{true, false}) {
		t.Error("batch size mismatch should not be contained")
	}
}

func TestVecStateReduce(t *testing.T) {
	// Hidden states of size 2 for lengths 5, 3, 3, 1.
	s := &VecState{
		Vector:     anyvec64.MakeVectorData([]float64{1, 2, 3, 4, 5, 6, 7, 8}),
		PresentMap: LengthsPresent([]int{5, 3, 3, 1}, 0),
	}
	reduced := s.Reduce(LengthsPresent([]int{5, 3, 3, 1}, 1)).(*VecState)
	if actual := reduced.Vector.Data().([]float64); !reflect.DeepEqual(actual,
		[]float64{1, 2, 3, 4, 5, 6}) {
		t.Errorf("unexpected first reduction: %v", actual)
	}
	reduced = reduced.Reduce(LengthsPresent([]int{5, 3, 3, 1}, 3)).(*VecState)
	if actual := reduced.Vector.Data().([]float64); !reflect.DeepEqual(actual,
		[]float64{1, 2}) {
		t.Errorf("unexpected second reduction: %v", actual)
	}

	s = &VecState{
		Vector:     anyvec64.MakeVectorData([]float64{1, 2, 3, 4, 5, 6}),
		PresentMap: PresentMap{true, false, true, true},
	}
	reduced = s.Reduce(PresentMap{false, false, true, false}).(*VecState)
	if actual := reduced.Vector.Data().([]float64); !reflect.DeepEqual(actual,
		[]float64{3, 4}) {
		t.Errorf("unexpected middle reduction: %v", actual)
	}

	defer func() {
		if recover() == nil {
			t.Error("reducing to an absent sequence should panic")
		}
	}()
	s.Reduce(PresentMap{false, true, false, false})
}

func TestVecStateExpand(t *testing.T) {
	s := &VecState{
		Vector:     anyvec64.MakeVectorData([]float64{1, 2, 3, 4}),
		PresentMap: PresentMap{false, true, false, true},
	}
	expanded := s.Expand(PresentMap{true, true, true, true}).(*VecState)
	expected := []float64{0, 0, 1, 2, 0, 0, 3, 4}
	if actual := expanded.Vector.Data().([]float64); !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}

	expanded = s.Expand(PresentMap{false, true, true, true}).(*VecState)
	expected = []float64{1, 2, 0, 0, 3, 4}
	if actual := expanded.Vector.Data().([]float64); !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestVecStateRoundTrip(t *testing.T) {
	lengths := []int{4, 2, 4}
	s := &VecState{
		Vector:     anyvec64.MakeVectorData([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}),
		PresentMap: LengthsPresent(lengths, 0),
	}
	reduced := s.Reduce(LengthsPresent(lengths, 2)).(*VecState)
	restored := reduced.Expand(s.PresentMap).(*VecState)
	expected := []float64{1, 2, 3, 0, 0, 0, 7, 8, 9}
	if actual := restored.Vector.Data().([]float64); !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}
