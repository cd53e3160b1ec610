package anyrnn

import "github.com/unixpickle/anyvec"

// A VecState is a State and StateGrad stored as one vector
// row per present sequence.
type VecState struct {
	Vector     anyvec.Vector
	PresentMap PresentMap
}

// Present returns the PresentMap.
func (v *VecState) Present() PresentMap {
	return v.PresentMap
}

// Reduce keeps the rows of the sequences present in p.
func (v *VecState) Reduce(p PresentMap) State {
	if !v.PresentMap.Contains(p) {
		panic("cannot reduce to sequences which are not present")
	}
	c := v.Vector.Creator()
	table := rowTable(v.PresentMap, p, v.rowSize())
	if len(table) == 0 {
		return &VecState{Vector: c.MakeVector(0), PresentMap: p}
	}
	mapper := c.MakeMapper(v.Vector.Len(), table)
	res := c.MakeVector(mapper.OutSize())
	mapper.Map(v.Vector, res)
	return &VecState{Vector: res, PresentMap: p}
}

// Expand inserts zero rows for the sequences which are
// present in p but not in v.
func (v *VecState) Expand(p PresentMap) StateGrad {
	if !p.Contains(v.PresentMap) {
		panic("cannot expand to fewer sequences")
	}
	if v.PresentMap.NumPresent() == 0 {
		panic("cannot expand an empty state")
	}
	c := v.Vector.Creator()
	rowSize := v.rowSize()
	mapper := c.MakeMapper(p.NumPresent()*rowSize, rowTable(p, v.PresentMap, rowSize))
	res := c.MakeVector(mapper.InSize())
	mapper.MapTranspose(v.Vector, res)
	return &VecState{Vector: res, PresentMap: p}
}

func (v *VecState) rowSize() int {
	n := v.PresentMap.NumPresent()
	if n == 0 {
		return 0
	}
	return v.Vector.Len() / n
}

// rowTable lists the components of the rows of the
// sequences in sub, as indices into a vector holding the
// rows of the sequences in super.
func rowTable(super, sub PresentMap, rowSize int) []int {
	var table []int
	var row int
	for i, present := range super {
		if !present {
			continue
		}
		if sub[i] {
			for j := 0; j < rowSize; j++ {
				table = append(table, row*rowSize+j)
			}
		}
		row++
	}
	return table
}
