package overlay

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"sync"

	"github.com/anthonynsimon/bild/clone"
	"github.com/pkg/errors"

	"github.com/ironsheep/redact-editor/internal/imaging"
)

var (
	labelFG = color.RGBA{255, 255, 255, 255}
	labelBG = color.RGBA{0, 0, 0, 180}
)

// RasterRenderer composites frames over the source image scaled to the
// rendered size, producing a preview of what the user sees.
type RasterRenderer struct {
	mu     sync.Mutex
	theme  Theme
	labels bool
	cache  *imaging.ScaledCache
	last   *image.RGBA
}

// NewRasterRenderer creates a raster backend. With labels set each box is
// tagged with its index.
func NewRasterRenderer(theme Theme, labels bool) *RasterRenderer {
	return &RasterRenderer{
		theme:  theme,
		labels: labels,
		cache:  imaging.NewScaledCache(),
	}
}

// SetSource binds the image boxes are drawn over. nil unbinds it.
func (r *RasterRenderer) SetSource(img image.Image) {
	r.mu.Lock()
	r.cache.Reset(img)
	r.last = nil
	r.mu.Unlock()
}

// Draw renders f over the scaled source.
func (r *RasterRenderer) Draw(f Frame) error {
	// a sliver of an extreme aspect ratio still gets one pixel
	w := max(1, int(math.Round(f.Rendered.W)))
	h := max(1, int(math.Round(f.Rendered.H)))

	r.mu.Lock()
	defer r.mu.Unlock()

	base, err := r.cache.Scaled(w, h)
	if err != nil {
		return errors.Wrap(err, "raster overlay")
	}
	canvas := clone.AsRGBA(base)

	for _, b := range f.Boxes {
		rect := image.Rect(
			int(math.Round(b.Rect.X)),
			int(math.Round(b.Rect.Y)),
			int(math.Round(b.Rect.X+b.Rect.W)),
			int(math.Round(b.Rect.Y+b.Rect.H)),
		)
		style := r.theme.Style(b.Style)
		imaging.FillRect(canvas, rect, style.Fill, style.FillOpacity)
		imaging.StrokeRect(canvas, rect, style.Border, style.BorderWidth)
		if r.labels {
			imaging.DrawLabel(canvas, rect.Min.X+2, rect.Min.Y+2, "#"+strconv.Itoa(b.Index), labelFG, labelBG)
		}
	}

	r.last = canvas
	return nil
}

// Clear drops the last rendered image.
func (r *RasterRenderer) Clear() error {
	r.mu.Lock()
	r.last = nil
	r.mu.Unlock()
	return nil
}

// Image returns the last rendered image.
func (r *RasterRenderer) Image() (image.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil, false
	}
	return r.last, true
}
