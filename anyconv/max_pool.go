package anyconv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// MaxPool takes the maximum of every non-overlapping
// SpanX by SpanY window of each channel.
//
// Images are row-major depth-minor.
// Trailing rows and columns which do not fill a window are
// dropped, so an image smaller than a span pools to
// nothing.
type MaxPool struct {
	SpanX int
	SpanY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	windows anyvec.Mapper
}

// WithInputSize creates a copy of the layer for images of
// a different width and height.
// The copy may be used concurrently.
func (m *MaxPool) WithInputSize(c anyvec.Creator, width, height int) *MaxPool {
	res := &MaxPool{
		SpanX:       m.SpanX,
		SpanY:       m.SpanY,
		InputWidth:  width,
		InputHeight: height,
		InputDepth:  m.InputDepth,
	}
	if res.OutputWidth() > 0 && res.OutputHeight() > 0 {
		res.windows = res.makeWindows(c)
	}
	return res
}

// OutputWidth returns the width of the output images.
func (m *MaxPool) OutputWidth() int {
	return pooledSize(m.InputWidth, m.SpanX)
}

// OutputHeight returns the height of the output images.
func (m *MaxPool) OutputHeight() int {
	return pooledSize(m.InputHeight, m.SpanY)
}

// OutputDepth returns the depth of the output images.
func (m *MaxPool) OutputDepth() int {
	return m.InputDepth
}

// Apply pools a batch of images.
func (m *MaxPool) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	c := in.Output().Creator()
	if in.Output().Len() != batchSize*m.InputWidth*m.InputHeight*m.InputDepth {
		panic("incorrect input size")
	}
	if m.OutputWidth() == 0 || m.OutputHeight() == 0 {
		return anydiff.NewConst(c.MakeVector(0))
	}
	windows := m.windows
	if windows == nil {
		windows = m.makeWindows(c)
	}

	windowData := batchMap(windows, in.Output())
	maxes := anyvec.MapMax(windowData, m.SpanX*m.SpanY)
	out := c.MakeVector(maxes.OutSize())
	maxes.Map(windowData, out)
	return &maxPoolRes{
		Windows: windows,
		Maxes:   maxes,
		In:      in,
		OutVec:  out,
	}
}

// makeWindows creates a Mapper which lays out each window
// of a channel as one contiguous row, with rows ordered
// like the output components.
func (m *MaxPool) makeWindows(c anyvec.Creator) anyvec.Mapper {
	rowStride := m.InputWidth * m.InputDepth
	var table []int
	for outY := 0; outY < m.OutputHeight(); outY++ {
		for outX := 0; outX < m.OutputWidth(); outX++ {
			corner := outY*m.SpanY*rowStride + outX*m.SpanX*m.InputDepth
			for z := 0; z < m.InputDepth; z++ {
				for y := 0; y < m.SpanY; y++ {
					for x := 0; x < m.SpanX; x++ {
						table = append(table, corner+y*rowStride+x*m.InputDepth+z)
					}
				}
			}
		}
	}
	return c.MakeMapper(m.InputWidth*m.InputHeight*m.InputDepth, table)
}

func pooledSize(in, span int) int {
	if in <= 0 {
		return 0
	}
	return in / span
}

type maxPoolRes struct {
	Windows anyvec.Mapper
	Maxes   anyvec.Mapper
	In      anydiff.Res
	OutVec  anyvec.Vector
}

func (m *maxPoolRes) Output() anyvec.Vector {
	return m.OutVec
}

func (m *maxPoolRes) Vars() anydiff.VarSet {
	return m.In.Vars()
}

func (m *maxPoolRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	windowGrad := u.Creator().MakeVector(m.Maxes.InSize())
	m.Maxes.MapTranspose(u, windowGrad)
	m.In.Propagate(batchMapTranspose(m.Windows, windowGrad), g)
}
