package overlay

import (
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/ironsheep/redact-editor/internal/geometry"
)

// Hints shown on a box, describing what a click will do.
const (
	HintKeep = "Click to KEEP text (Don't Blur)"
	HintBlur = "Click to BLUR text"
)

// StyleName identifies one of the two box styles.
type StyleName string

const (
	// StyleMarked is used for regions that will be redacted.
	StyleMarked StyleName = "marked"
	// StyleExcluded is used for regions that will be preserved.
	StyleExcluded StyleName = "excluded"
)

// Style is the look of one box state.
type Style struct {
	Fill        colorful.Color
	FillOpacity float64
	Border      colorful.Color
	BorderWidth int
}

// Theme holds the styles for both box states.
type Theme struct {
	Marked   Style
	Excluded Style
}

// ThemeConfig is a Theme spelled with hex colours.
type ThemeConfig struct {
	MarkedFill     string
	MarkedBorder   string
	ExcludedFill   string
	ExcludedBorder string
	FillOpacity    float64
	BorderWidth    int
}

// DefaultThemeConfig mirrors the red "will blur" / green "keep" boxes of the web editor.
func DefaultThemeConfig() ThemeConfig {
	return ThemeConfig{
		MarkedFill:     "#ff0000",
		MarkedBorder:   "#ff0000",
		ExcludedFill:   "#00c853",
		ExcludedBorder: "#00c853",
		FillOpacity:    0.3,
		BorderWidth:    2,
	}
}

// ParseTheme converts hex colours into a Theme.
func ParseTheme(cfg ThemeConfig) (Theme, error) {
	parse := func(field, hex string) (colorful.Color, error) {
		c, err := colorful.Hex(hex)
		if err != nil {
			return colorful.Color{}, errors.Wrapf(err, "%s colour %q", field, hex)
		}
		return c, nil
	}

	var (
		t   Theme
		err error
	)
	if t.Marked.Fill, err = parse("marked fill", cfg.MarkedFill); err != nil {
		return Theme{}, err
	}
	if t.Marked.Border, err = parse("marked border", cfg.MarkedBorder); err != nil {
		return Theme{}, err
	}
	if t.Excluded.Fill, err = parse("excluded fill", cfg.ExcludedFill); err != nil {
		return Theme{}, err
	}
	if t.Excluded.Border, err = parse("excluded border", cfg.ExcludedBorder); err != nil {
		return Theme{}, err
	}
	t.Marked.FillOpacity, t.Excluded.FillOpacity = cfg.FillOpacity, cfg.FillOpacity
	t.Marked.BorderWidth, t.Excluded.BorderWidth = cfg.BorderWidth, cfg.BorderWidth
	return t, nil
}

// Style returns the style for a state.
func (t Theme) Style(name StyleName) Style {
	if name == StyleExcluded {
		return t.Excluded
	}
	return t.Marked
}

// Box is one overlay element: a region in screen space with its click target.
type Box struct {
	Index  int           `json:"index"`
	Rect   geometry.Rect `json:"rect"`
	Active bool          `json:"active"`
	Style  StyleName     `json:"style"`
	Hint   string        `json:"hint"`
}

// Frame is a full overlay: every box for the current region set.
type Frame struct {
	Rendered    geometry.Size   `json:"rendered"`
	Natural     geometry.Size   `json:"natural"`
	Mapping     geometry.Mapper `json:"mapping"`
	Boxes       []Box           `json:"boxes"`
	ActiveCount int             `json:"active_count"`
	Total       int             `json:"total"`
}

// Renderer is a rendering backend. Draw replaces whatever was shown before.
type Renderer interface {
	Draw(Frame) error
	Clear() error
}

// MemoryRenderer keeps the last drawn frame. It is safe for concurrent use.
type MemoryRenderer struct {
	mu    sync.RWMutex
	frame *Frame
	draws int
}

// NewMemoryRenderer returns an empty MemoryRenderer.
func NewMemoryRenderer() *MemoryRenderer { return &MemoryRenderer{} }

// Draw stores f, replacing the previous frame.
func (r *MemoryRenderer) Draw(f Frame) error {
	r.mu.Lock()
	r.frame = &f
	r.draws++
	r.mu.Unlock()
	return nil
}

// Clear drops the stored frame.
func (r *MemoryRenderer) Clear() error {
	r.mu.Lock()
	r.frame = nil
	r.mu.Unlock()
	return nil
}

// Frame returns the last drawn frame, or false when nothing is shown.
func (r *MemoryRenderer) Frame() (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.frame == nil {
		return Frame{}, false
	}
	return *r.frame, true
}

// Draws returns how many frames have been drawn.
func (r *MemoryRenderer) Draws() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.draws
}
