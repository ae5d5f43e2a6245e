// Package collab talks to the detection and redaction service over HTTP.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/redact-editor/internal/editor"
	"github.com/ironsheep/redact-editor/internal/imaging"
	"github.com/ironsheep/redact-editor/internal/regions"
)

// maxResponseBytes caps a response body. Larger bodies are rejected.
const maxResponseBytes = 64 << 20

// Client implements editor.Uploader and editor.Redactor against the service's
// /upload and /process endpoints. Every failure matches editor.ErrTransport.
type Client struct {
	uploadURL  string
	processURL string
	http       *http.Client
	maxBody    int64
	logger     *zap.SugaredLogger
}

// Config configures a Client.
type Config struct {
	// UploadURL receives multipart image uploads.
	UploadURL string
	// ProcessURL receives redaction requests.
	ProcessURL string
	// Timeout bounds each request. Zero means no timeout beyond the context.
	Timeout time.Duration
}

// New creates a Client.
func New(cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	if cfg.UploadURL == "" || cfg.ProcessURL == "" {
		return nil, errors.New("collab: upload and process URLs are required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		uploadURL:  cfg.UploadURL,
		processURL: cfg.ProcessURL,
		http:       &http.Client{Timeout: cfg.Timeout},
		maxBody:    maxResponseBytes,
		logger:     logger,
	}, nil
}

// wireBox is a region on the wire. Pointers detect missing fields.
type wireBox struct {
	ID *int `json:"id,omitempty"`
	X  *int `json:"x"`
	Y  *int `json:"y"`
	W  *int `json:"w"`
	H  *int `json:"h"`
}

type uploadResponse struct {
	ImageBase64 string    `json:"image_base64"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Boxes       []wireBox `json:"boxes"`
}

type processBox struct {
	ID int `json:"id"`
	X  int `json:"x"`
	Y  int `json:"y"`
	W  int `json:"w"`
	H  int `json:"h"`
}

type processRequest struct {
	ImageBase64 string       `json:"image_base64"`
	Boxes       []processBox `json:"boxes"`
}

// Upload sends one image file for detection.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*editor.UploadResult, error) {
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, transport(errors.Errorf("%s is %s, not an image", filename, contentType))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, transport(err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, transport(err)
	}
	if err := mw.Close(); err != nil {
		return nil, transport(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return nil, transport(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, transport(errors.Wrap(err, "decode upload response"))
	}
	img, err := imaging.DecodeBase64(resp.ImageBase64)
	if err != nil {
		return nil, transport(err)
	}
	boxes, err := toBoxes(resp.Boxes)
	if err != nil {
		return nil, transport(err)
	}

	c.logger.Debugw("upload complete", "file", filename, "width", resp.Width, "height", resp.Height, "boxes", len(boxes))
	return &editor.UploadResult{Image: img, Boxes: boxes}, nil
}

// Redact sends the image and the boxes to blur and returns the result image.
func (c *Client) Redact(ctx context.Context, image []byte, boxes []regions.Box) ([]byte, error) {
	payload := processRequest{
		ImageBase64: imaging.EncodeBase64(image),
		Boxes: lo.Map(boxes, func(b regions.Box, _ int) processBox {
			return processBox{ID: b.ID, X: b.X, Y: b.Y, W: b.W, H: b.H}
		}),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, transport(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(body))
	if err != nil {
		return nil, transport(err)
	}
	req.Header.Set("Content-Type", "application/json")

	out, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, transport(errors.New("empty redaction result"))
	}
	c.logger.Debugw("redaction complete", "boxes", len(boxes), "bytes", len(out))
	return out, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, transport(errors.Wrap(err, "read response"))
	}
	if int64(len(raw)) > c.maxBody {
		return nil, transport(errors.Errorf("%s %s: response exceeds %d bytes", req.Method, req.URL.Path, c.maxBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debugw("collaborator error", "url", req.URL.String(), "status", resp.StatusCode, "body", truncate(raw, 200))
		return nil, transport(errors.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status))
	}
	return raw, nil
}

// toBoxes converts wire boxes, rejecting the whole set if any box lacks a
// coordinate. A missing id defaults to the box's position.
func toBoxes(in []wireBox) ([]regions.Box, error) {
	var errs error
	out := make([]regions.Box, 0, len(in))
	for i, w := range in {
		var missing []string
		for _, f := range []struct {
			name string
			v    *int
		}{{"x", w.X}, {"y", w.Y}, {"w", w.W}, {"h", w.H}} {
			if f.v == nil {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			errs = multierr.Append(errs, errors.Errorf("box %d missing %s", i, strings.Join(missing, ",")))
			continue
		}
		id := i
		if w.ID != nil {
			id = *w.ID
		}
		out = append(out, regions.Box{ID: id, X: *w.X, Y: *w.Y, W: *w.W, H: *w.H})
	}
	if errs != nil {
		return nil, errors.Wrap(multierr.Append(regions.ErrMalformed, errs), "upload response")
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

func transport(err error) error {
	return fmt.Errorf("%w: %w", editor.ErrTransport, err)
}
