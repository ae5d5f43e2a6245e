package imaging

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/pkg/errors"
)

// PreviewResult contains an encoded preview image
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as PNG bytes
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode preview")
	}
	return buf.Bytes(), nil
}

// Preview encodes img as a base64 PNG result
func Preview(img image.Image) (*PreviewResult, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &PreviewResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}
