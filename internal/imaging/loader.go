package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/redact-editor/internal/geometry"
)

// Payload is an encoded image payload after decoding.
type Payload struct {
	// Image is the decoded image with EXIF orientation applied.
	Image image.Image

	// Width and Height are the natural dimensions in pixels, after orientation.
	Width  int
	Height int

	// Format is the name reported by the registered decoder ("jpeg", "png", ...).
	Format string
}

// Natural returns the payload's natural size.
func (p *Payload) Natural() geometry.Size {
	return geometry.Size{W: float64(p.Width), H: float64(p.Height)}
}

// DecodePayload decodes an encoded image payload and reports its natural size.
//
// EXIF orientation is applied, so the natural size matches what a browser
// reports for the same bytes. Supported formats are JPEG, PNG, GIF, BMP, TIFF
// and WebP.
func DecodePayload(data []byte) (*Payload, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image header")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Errorf("decoded image has empty bounds %v", b)
	}

	return &Payload{
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
	}, nil
}

// DecodeBase64 decodes a base64 image payload. A leading data URL header such
// as "data:image/jpeg;base64," is stripped first.
func DecodeBase64(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 image payload")
	}
	return data, nil
}

// EncodeBase64 encodes an image payload for the wire.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// ScaledCache keeps resampled copies of one source image keyed by target size,
// so redundant redraws at an unchanged size skip the resample.
//
// ScaledCache is safe for concurrent use. It is bound to a single source; call
// Reset when the source changes.
type ScaledCache struct {
	mu     sync.RWMutex
	src    image.Image
	scaled map[image.Point]*image.NRGBA
}

// NewScaledCache creates an empty cache with no source.
func NewScaledCache() *ScaledCache {
	return &ScaledCache{
		scaled: make(map[image.Point]*image.NRGBA),
	}
}

// Reset binds the cache to a new source image and drops every scaled copy.
// A nil source leaves the cache empty.
func (c *ScaledCache) Reset(src image.Image) {
	c.mu.Lock()
	c.src = src
	c.scaled = make(map[image.Point]*image.NRGBA)
	c.mu.Unlock()
}

// Scaled returns the source resampled to w x h.
func (c *ScaledCache) Scaled(w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", w, h)
	}
	key := image.Pt(w, h)

	c.mu.RLock()
	src := c.src
	if img, ok := c.scaled[key]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	if src == nil {
		return nil, errors.New("no source image")
	}

	img := imaging.Resize(src, w, h, imaging.Linear)

	c.mu.Lock()
	// Reset may have swapped the source while resampling.
	if c.src == src {
		c.scaled[key] = img
	}
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached sizes.
func (c *ScaledCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scaled)
}
