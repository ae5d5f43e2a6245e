package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/redact-editor/internal/editor"
	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/overlay"
	"github.com/ironsheep/redact-editor/internal/regions"
)

type stubUploader struct {
	res *editor.UploadResult
	err error
}

func (u *stubUploader) Upload(ctx context.Context, filename string, data []byte) (*editor.UploadResult, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.res, nil
}

type stubRedactor struct {
	mu    sync.Mutex
	boxes []regions.Box
	err   error
}

func (r *stubRedactor) Redact(ctx context.Context, img []byte, boxes []regions.Box) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boxes = boxes
	if r.err != nil {
		return nil, r.err
	}
	return []byte("JPEG"), nil
}

type memSaver struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memSaver) Save(filename string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[filename] = data
	return nil
}

type testServer struct {
	*Server
	uploader *stubUploader
	redactor *stubRedactor
	saver    *memSaver
	out      *bytes.Buffer
}

func newTestServer(t *testing.T, viewport geometry.Size) *testServer {
	t.Helper()
	theme, err := overlay.ParseTheme(overlay.DefaultThemeConfig())
	if err != nil {
		t.Fatalf("ParseTheme: %v", err)
	}
	ts := &testServer{
		uploader: &stubUploader{},
		redactor: &stubRedactor{},
		saver:    &memSaver{},
		out:      &bytes.Buffer{},
	}
	s, err := New(Options{
		Uploader: ts.uploader,
		Redactor: ts.redactor,
		Saver:    ts.saver,
		Theme:    theme,
		Labels:   true,
		Viewport: viewport,
		Version:  "test",
		Logger:   zaptest.NewLogger(t).Sugar(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.out = json.NewEncoder(ts.out)
	t.Cleanup(s.ctrl.Close)
	ts.Server = s
	return ts
}

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 240, G: 240, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// callTool runs a tools/call request and decodes the text content into out.
func (ts *testServer) callTool(t *testing.T, name string, args interface{}, out interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := ts.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil || out == nil {
		return resp
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content := result["content"].([]map[string]interface{})
	text := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("decode tool result %q: %v", text, err)
	}
	return resp
}

// notifications returns the messages of every notification written so far.
func (ts *testServer) notifications(t *testing.T) []string {
	t.Helper()
	ts.outMu.Lock()
	raw := append([]byte(nil), ts.out.Bytes()...)
	ts.outMu.Unlock()

	var msgs []string
	dec := json.NewDecoder(bytes.NewReader(raw))
	for {
		var n struct {
			Method string `json:"method"`
			Params struct {
				Level string `json:"level"`
				Data  struct {
					Message string `json:"message"`
				} `json:"data"`
			} `json:"params"`
		}
		if err := dec.Decode(&n); err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("decode output: %v", err)
			}
			return msgs
		}
		if n.Method == "notifications/message" {
			msgs = append(msgs, n.Params.Data.Message)
		}
	}
}
