package geometry

import (
	"math"

	"github.com/pkg/errors"
)

// ErrImageNotReady is returned when a mapping is requested before the image's
// natural dimensions are known.
var ErrImageNotReady = errors.New("image natural dimensions not available")

// Size is a width/height pair. Natural sizes are whole pixels; rendered sizes
// may be fractional after layout.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Point is a position in either natural or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle given by its top-left corner and size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p lies inside r. The right and bottom edges are exclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Mapper converts between natural and screen space for one draw.
type Mapper struct {
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
}

// NewMapper derives the scale factors from the rendered and natural sizes.
// It fails with ErrImageNotReady when the natural size is unknown.
func NewMapper(rendered, natural Size) (Mapper, error) {
	if natural.Empty() {
		return Mapper{}, ErrImageNotReady
	}
	return Mapper{
		ScaleX: rendered.W / natural.W,
		ScaleY: rendered.H / natural.H,
	}, nil
}

// ToScreen maps a natural-space rectangle into screen space.
func (m Mapper) ToScreen(r Rect) Rect {
	return Rect{
		X: r.X * m.ScaleX,
		Y: r.Y * m.ScaleY,
		W: r.W * m.ScaleX,
		H: r.H * m.ScaleY,
	}
}

// ToNatural maps a screen-space point back into natural space. A zero scale
// yields the origin.
func (m Mapper) ToNatural(p Point) Point {
	if m.ScaleX == 0 || m.ScaleY == 0 {
		return Point{}
	}
	return Point{X: p.X / m.ScaleX, Y: p.Y / m.ScaleY}
}

// FitWithin returns the rendered size of an image of the given natural size
// laid out inside viewport. The image is scaled down to fit while keeping its
// aspect ratio and is never scaled up. An empty viewport leaves the natural size.
func FitWithin(natural, viewport Size) Size {
	if natural.Empty() {
		return Size{}
	}
	if viewport.Empty() {
		return natural
	}
	ratio := math.Min(viewport.W/natural.W, viewport.H/natural.H)
	if ratio >= 1 {
		return natural
	}
	return Size{W: natural.W * ratio, H: natural.H * ratio}
}
