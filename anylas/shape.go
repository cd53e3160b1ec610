package anylas

import "fmt"

// An Axis identifies one spatial axis of an image.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Shape describes a single image in a batch.
//
// Images are stored row-major depth-minor, so the value at
// (x, y, z) is at index (y*Width+x)*Depth+z.
type Shape struct {
	Width  int
	Height int
	Depth  int
}

// Size returns the number of components in an image.
func (s Shape) Size() int {
	return s.Width * s.Height * s.Depth
}

// Along returns the size of the image along an axis.
func (s Shape) Along(axis Axis) int {
	if axis == AxisX {
		return s.Width
	}
	return s.Height
}

// Across returns the size of the image along the axis
// that is not the given one.
func (s Shape) Across(axis Axis) int {
	if axis == AxisX {
		return s.Height
	}
	return s.Width
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth)
}
