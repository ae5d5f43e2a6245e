package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ironsheep/redact-editor/internal/editor"
	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/imaging"
	"github.com/ironsheep/redact-editor/internal/overlay"
	"github.com/ironsheep/redact-editor/internal/regions"
)

// readyTimeout bounds how long upload and load wait for the first draw.
const readyTimeout = 30 * time.Second

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "editor_upload", "editor_toggle").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Debugw("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Session
	case "editor_upload":
		return s.handleEditorUpload(ctx, args)
	case "editor_load":
		return s.handleEditorLoad(ctx, args)
	case "editor_reset":
		return s.handleEditorReset()

	// Selection
	case "editor_toggle":
		return s.handleEditorToggle(args)
	case "editor_click":
		return s.handleEditorClick(args)
	case "editor_select_all":
		return s.handleEditorSelectAll(args)

	// Display
	case "editor_resize":
		return s.handleEditorResize(args)
	case "editor_state":
		return s.state(), nil
	case "editor_preview":
		return s.handleEditorPreview()

	// Export
	case "editor_export":
		return s.handleEditorExport(ctx)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return errors.New("missing arguments")
	}
	return errors.Wrap(json.Unmarshal(args, v), "invalid arguments")
}

// === Session Handlers ===

type editorUploadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleEditorUpload(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a editorUploadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	data, err := s.readFile(a.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", a.Path)
	}
	if err := s.ctrl.BeginUpload(ctx, filepath.Base(a.Path), data); err != nil {
		return nil, err
	}
	return s.awaitFirstDraw(ctx)
}

type wireBox struct {
	ID *int `json:"id"`
	X  *int `json:"x"`
	Y  *int `json:"y"`
	W  *int `json:"w"`
	H  *int `json:"h"`
}

type editorLoadArgs struct {
	ImageBase64 string    `json:"image_base64"`
	Boxes       []wireBox `json:"boxes"`
}

func (s *Server) handleEditorLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a editorLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := imaging.DecodeBase64(a.ImageBase64)
	if err != nil {
		return nil, err
	}
	boxes := make([]regions.Box, len(a.Boxes))
	for i, b := range a.Boxes {
		if b.X == nil || b.Y == nil || b.W == nil || b.H == nil {
			return nil, errors.Wrapf(regions.ErrMalformed, "box %d needs x, y, w and h", i)
		}
		boxes[i] = regions.Box{ID: lo.FromPtrOr(b.ID, i), X: *b.X, Y: *b.Y, W: *b.W, H: *b.H}
	}
	if err := s.ctrl.LoadSession(&editor.UploadResult{Image: img, Boxes: boxes}); err != nil {
		return nil, err
	}
	return s.awaitFirstDraw(ctx)
}

func (s *Server) awaitFirstDraw(ctx context.Context) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := s.ctrl.WaitReady(ctx); err != nil {
		return nil, errors.Wrap(err, "image not displayed")
	}
	return s.state(), nil
}

func (s *Server) handleEditorReset() (interface{}, error) {
	if err := s.ctrl.Reset(); err != nil {
		return nil, err
	}
	return s.state(), nil
}

// === Selection Handlers ===

type editorToggleArgs struct {
	Index *int `json:"index"`
}

func (s *Server) handleEditorToggle(args json.RawMessage) (interface{}, error) {
	var a editorToggleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Index == nil {
		return nil, errors.New("index is required")
	}
	if err := s.ctrl.Toggle(*a.Index); err != nil {
		return nil, err
	}
	return s.toggleResult(*a.Index), nil
}

type editorClickArgs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleEditorClick(args json.RawMessage) (interface{}, error) {
	var a editorClickArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	p := geometry.Point{X: a.X, Y: a.Y}
	i, hit, err := s.ctrl.Click(p)
	if err != nil {
		return nil, err
	}
	var res map[string]interface{}
	if hit {
		res = s.toggleResult(i)
	} else {
		snap := s.ctrl.Snapshot()
		res = map[string]interface{}{
			"active_count": snap.ActiveCount,
			"total":        snap.Count,
		}
	}
	res["hit"] = hit
	if snap := s.ctrl.Snapshot(); snap.Frame != nil {
		res["natural"] = snap.Frame.Mapping.ToNatural(p)
	}
	return res, nil
}

func (s *Server) toggleResult(i int) map[string]interface{} {
	snap := s.ctrl.Snapshot()
	res := map[string]interface{}{
		"index":        i,
		"active_count": snap.ActiveCount,
		"total":        snap.Count,
	}
	if i >= 0 && i < len(snap.Regions) {
		res["active"] = snap.Regions[i].Active
	}
	if snap.Frame != nil && i < len(snap.Frame.Boxes) {
		res["hint"] = snap.Frame.Boxes[i].Hint
	}
	return res
}

type editorSelectAllArgs struct {
	Active *bool `json:"active"`
}

func (s *Server) handleEditorSelectAll(args json.RawMessage) (interface{}, error) {
	var a editorSelectAllArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Active == nil {
		return nil, errors.New("active is required")
	}
	if err := s.ctrl.SelectAll(*a.Active); err != nil {
		return nil, err
	}
	return s.state(), nil
}

// === Display Handlers ===

type editorResizeArgs struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleEditorResize(args json.RawMessage) (interface{}, error) {
	var a editorResizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width < 0 || a.Height < 0 {
		return nil, errors.Errorf("viewport %gx%g must not be negative", a.Width, a.Height)
	}
	if err := s.ctrl.OnResize(geometry.Size{W: a.Width, H: a.Height}); err != nil {
		return nil, err
	}
	return s.state(), nil
}

func (s *Server) handleEditorPreview() (interface{}, error) {
	img, ok := s.raster.Image()
	if !ok {
		return nil, errors.Wrap(geometry.ErrImageNotReady, "nothing displayed")
	}
	return imaging.Preview(img)
}

// === Export Handler ===

func (s *Server) handleEditorExport(ctx context.Context) (interface{}, error) {
	if err := s.ctrl.ExportActive(ctx); err != nil {
		return nil, err
	}
	snap := s.ctrl.Snapshot()
	return map[string]interface{}{
		"filename": editor.DefaultFilename,
		"blurred":  snap.ActiveCount,
		"total":    snap.Count,
	}, nil
}

// === State ===

type dims struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type screenRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type regionState struct {
	Index  int         `json:"index"`
	ID     int         `json:"id"`
	X      int         `json:"x"`
	Y      int         `json:"y"`
	W      int         `json:"w"`
	H      int         `json:"h"`
	Active bool        `json:"active"`
	Style  string      `json:"style,omitempty"`
	Hint   string      `json:"hint,omitempty"`
	Screen *screenRect `json:"screen,omitempty"`
}

type stateResult struct {
	State       editor.State  `json:"state"`
	Screen      string        `json:"screen"`
	Loading     bool          `json:"loading"`
	Ready       bool          `json:"ready"`
	Exporting   bool          `json:"exporting"`
	Natural     *dims         `json:"natural,omitempty"`
	Rendered    *dims         `json:"rendered,omitempty"`
	Viewport    dims          `json:"viewport"`
	Total       int           `json:"total"`
	ActiveCount int           `json:"active_count"`
	Draws       int           `json:"draws"`
	Regions     []regionState `json:"regions"`
}

func (s *Server) state() stateResult {
	snap := s.ctrl.Snapshot()
	screen, loading := s.viewState()

	res := stateResult{
		State:       snap.State,
		Screen:      screen,
		Loading:     loading,
		Ready:       snap.Ready,
		Exporting:   snap.Exporting,
		Viewport:    dims{snap.Viewport.W, snap.Viewport.H},
		Total:       snap.Count,
		ActiveCount: snap.ActiveCount,
		Draws:       s.frames.Draws(),
	}
	if snap.Ready {
		res.Natural = &dims{snap.Natural.W, snap.Natural.H}
	}

	var boxes []overlay.Box
	if snap.Frame != nil {
		res.Rendered = &dims{snap.Frame.Rendered.W, snap.Frame.Rendered.H}
		boxes = snap.Frame.Boxes
	}
	res.Regions = lo.Map(snap.Regions, func(r regions.Region, i int) regionState {
		rs := regionState{Index: i, ID: r.ID, X: r.X, Y: r.Y, W: r.W, H: r.H, Active: r.Active}
		if i < len(boxes) {
			b := boxes[i]
			rs.Style = string(b.Style)
			rs.Hint = b.Hint
			rs.Screen = &screenRect{b.Rect.X, b.Rect.Y, b.Rect.W, b.Rect.H}
		}
		return rs
	})
	return res
}
