package imaging

import (
	"image"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// FillRect blends c over every pixel of r with the given opacity (0..1).
// The rectangle is clipped to the image bounds.
func FillRect(img *image.RGBA, r image.Rectangle, c colorful.Color, opacity float64) {
	r = r.Intersect(img.Bounds())
	if r.Empty() || opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			base, ok := colorful.MakeColor(img.RGBAAt(x, y))
			if !ok {
				// fully transparent pixel: paint the colour straight
				base = c
			}
			cr, cg, cb := base.BlendRgb(c, opacity).Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{R: cr, G: cg, B: cb, A: 255})
		}
	}
}

// StrokeRect draws a border of the given width just inside r.
func StrokeRect(img *image.RGBA, r image.Rectangle, c colorful.Color, width int) {
	if width <= 0 {
		return
	}
	cr, cg, cb := c.Clamped().RGB255()
	px := color.RGBA{R: cr, G: cg, B: cb, A: 255}
	clip := r.Intersect(img.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			if x < r.Min.X+width || x >= r.Max.X-width || y < r.Min.Y+width || y >= r.Max.Y-width {
				img.SetRGBA(x, y, px)
			}
		}
	}
}

// DrawLabel draws a simple text label at the given position
// Only digits and the characters ",#" have glyphs; others leave a gap
func DrawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	// Simple 3x5 pixel font
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
		'#': {"101", "111", "101", "111", "101"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	// Draw background
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.SetRGBA(px, py, bg)
			}
		}
	}

	// Draw text
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						img.SetRGBA(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
