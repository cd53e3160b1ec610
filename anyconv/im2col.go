package anyconv

import (
	"runtime"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// im2col convolves padded images by turning every image
// into a matrix of windows (one row per output position)
// and multiplying it by the filter matrix.
type im2col struct {
	conv *Conv

	// windows maps a padded image to its window matrix.
	windows anyvec.Mapper
}

func newIm2Col(c *Conv) *im2col {
	if c.Biases == nil || c.Filters == nil {
		panic("nil parameters")
	}
	res := &im2col{conv: c}
	if res.positions() > 0 {
		res.windows = c.Filters.Vector.Creator().MakeMapper(res.inSize(), res.windowTable())
	}
	return res
}

// windowTable lists, for every output position, the
// padded image components under the dilated filter.
func (m *im2col) windowTable() []int {
	c := m.conv
	dilX, dilY := dilation(c.DilationX), dilation(c.DilationY)
	rowStride := c.paddedWidth() * c.InputDepth
	table := make([]int, 0, m.positions()*m.windowSize())
	for outY := 0; outY < c.OutputHeight(); outY++ {
		for outX := 0; outX < c.OutputWidth(); outX++ {
			corner := outY*c.StrideY*rowStride + outX*c.StrideX*c.InputDepth
			for y := 0; y < c.FilterHeight; y++ {
				for x := 0; x < c.FilterWidth; x++ {
					tap := corner + y*dilY*rowStride + x*dilX*c.InputDepth
					for z := 0; z < c.InputDepth; z++ {
						table = append(table, tap+z)
					}
				}
			}
		}
	}
	return table
}

// Apply convolves a batch of padded images.
func (m *im2col) Apply(in anydiff.Res, batch int) anydiff.Res {
	c := in.Output().Creator()
	if m.conv.OutputWidth() == 0 || m.conv.OutputHeight() == 0 {
		return anydiff.NewConst(c.MakeVector(0))
	}
	if in.Output().Len() != batch*m.inSize() {
		panic("incorrect input size")
	}

	filters := m.filters()
	positions := m.positions()
	products := make([]anyvec.Vector, batch)
	m.eachImage(in.Output(), func(i int, windows *anyvec.Matrix) {
		product := &anyvec.Matrix{
			Data: c.MakeVector(positions * m.conv.FilterCount),
			Rows: positions,
			Cols: m.conv.FilterCount,
		}
		product.Product(false, true, c.MakeNumeric(1), windows, filters, c.MakeNumeric(0))
		products[i] = product.Data
	})

	out := c.Concat(products...)
	anyvec.AddRepeated(out, m.conv.Biases.Vector)

	params := anydiff.VarSet{}
	params.Add(m.conv.Filters)
	params.Add(m.conv.Biases)
	return &im2colRes{
		Kernel: m,
		N:      batch,
		In:     in,
		OutVec: out,
		V:      anydiff.MergeVarSets(in.Vars(), params),
	}
}

// filters views the filters as a matrix with one row per
// filter.
func (m *im2col) filters() *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: m.conv.Filters.Vector,
		Rows: m.conv.FilterCount,
		Cols: m.windowSize(),
	}
}

// positions is the number of output positions per image.
func (m *im2col) positions() int {
	return m.conv.OutputWidth() * m.conv.OutputHeight()
}

func (m *im2col) windowSize() int {
	return m.conv.FilterWidth * m.conv.FilterHeight * m.conv.InputDepth
}

func (m *im2col) inSize() int {
	return m.conv.paddedWidth() * m.conv.paddedHeight() * m.conv.InputDepth
}

// eachImage calls f with the window matrix of every image
// in a batch.
// The matrix is reused between calls, and f may change it.
func (m *im2col) eachImage(in anyvec.Vector, f func(int, *anyvec.Matrix)) {
	size := m.inSize()
	m.eachScratch(in.Creator(), in.Len()/size, func(i int, windows *anyvec.Matrix) {
		m.windows.Map(in.Slice(i*size, (i+1)*size), windows.Data)
		f(i, windows)
	})
}

// eachScratch calls f for n images with a scratch matrix
// shaped like a window matrix.
//
// With Conv.Parallel, f is called concurrently and out of
// order, with one scratch matrix per goroutine.
func (m *im2col) eachScratch(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	scratch := func() *anyvec.Matrix {
		return &anyvec.Matrix{
			Data: c.MakeVector(m.positions() * m.windowSize()),
			Rows: m.positions(),
			Cols: m.windowSize(),
		}
	}
	if !m.conv.Parallel {
		windows := scratch()
		for i := 0; i < n; i++ {
			f(i, windows)
		}
		return
	}

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	var wg sync.WaitGroup
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			windows := scratch()
			for i := range jobs {
				f(i, windows)
			}
		}()
	}
	wg.Wait()
}

type im2colRes struct {
	Kernel *im2col
	N      int
	In     anydiff.Res
	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (i *im2colRes) Output() anyvec.Vector {
	return i.OutVec
}

func (i *im2colRes) Vars() anydiff.VarSet {
	return i.V
}

func (i *im2colRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	conv := i.Kernel.conv
	if biasGrad, ok := g[conv.Biases]; ok {
		biasGrad.Add(anyvec.SumRows(u, conv.FilterCount))
	}

	filterGrad, doFilters := g[conv.Filters]
	doIn := g.Intersects(i.In.Vars())
	if !doFilters && !doIn {
		return
	}

	c := u.Creator()
	one := c.MakeNumeric(1)
	zero := c.MakeNumeric(0)
	filters := i.Kernel.filters()
	outSize := u.Len() / i.N
	inSize := i.In.Output().Len() / i.N

	inGrads := make([]anyvec.Vector, i.N)
	var filterLock sync.Mutex
	visit := func(idx int, windows *anyvec.Matrix) {
		upstream := &anyvec.Matrix{
			Data: u.Slice(outSize*idx, outSize*(idx+1)),
			Rows: i.Kernel.positions(),
			Cols: conv.FilterCount,
		}
		if doFilters {
			grad := &anyvec.Matrix{
				Data: c.MakeVector(filterGrad.Len()),
				Rows: filters.Rows,
				Cols: filters.Cols,
			}
			grad.Product(true, false, one, upstream, windows, zero)
			filterLock.Lock()
			filterGrad.Add(grad.Data)
			filterLock.Unlock()
		}
		if doIn {
			windows.Product(false, false, one, upstream, filters, zero)
			inGrad := c.MakeVector(inSize)
			i.Kernel.windows.MapTranspose(windows.Data, inGrad)
			inGrads[idx] = inGrad
		}
	}

	// The windows are only needed for the filter gradient.
	if doFilters {
		i.Kernel.eachImage(i.In.Output(), visit)
	} else {
		i.Kernel.eachScratch(c, i.N, visit)
	}

	if doIn {
		i.In.Propagate(c.Concat(inGrads...), g)
	}
}
