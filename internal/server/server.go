package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/redact-editor/internal/editor"
	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/overlay"
)

// Server handles MCP protocol communication and owns the editor it drives.
type Server struct {
	ctrl   *editor.Controller
	frames *overlay.MemoryRenderer
	raster *overlay.RasterRenderer
	logger *zap.SugaredLogger

	name    string
	version string

	// readFile loads files named by editor_upload.
	readFile func(string) ([]byte, error)

	// outMu guards out; responses and notifications share the stream.
	outMu sync.Mutex
	out   *json.Encoder

	// view state reported by the editor
	viewMu  sync.Mutex
	screen  string
	loading bool
}

// Options configures a Server. Uploader, Redactor and Saver are required.
type Options struct {
	Uploader editor.Uploader
	Redactor editor.Redactor
	Saver    editor.Saver

	Theme          overlay.Theme
	Labels         bool
	Viewport       geometry.Size
	ResizeDebounce time.Duration

	Name    string
	Version string
	Logger  *zap.SugaredLogger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server with an idle editor.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		frames:   overlay.NewMemoryRenderer(),
		raster:   overlay.NewRasterRenderer(opts.Theme, opts.Labels),
		logger:   logger,
		name:     opts.Name,
		version:  opts.Version,
		readFile: os.ReadFile,
		out:      json.NewEncoder(os.Stdout),
		screen:   screenUpload,
	}
	if s.name == "" {
		s.name = "redact-editor"
	}
	if s.version == "" {
		s.version = "dev"
	}

	ctrl, err := editor.New(editor.Options{
		Uploader:       opts.Uploader,
		Redactor:       opts.Redactor,
		Saver:          opts.Saver,
		View:           s,
		Renderer:       overlay.Multi(s.frames, s.raster),
		Sources:        []editor.ImageSource{s.raster},
		Viewport:       opts.Viewport,
		ResizeDebounce: opts.ResizeDebounce,
		Logger:         logger.Named("editor"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create editor")
	}
	s.ctrl = ctrl
	return s, nil
}

// Run serves the MCP session on stdin and stdout until stdin closes or ctx is
// done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses and
// notifications to w until r is exhausted or ctx is done. A cancelled ctx
// returns promptly even while r blocks; the line reader then exits on its
// next read.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	defer s.ctrl.Close()

	scanner := bufio.NewScanner(r)
	// Uploaded payloads arrive inline as base64
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	s.outMu.Lock()
	s.out = json.NewEncoder(w)
	s.outMu.Unlock()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		var line []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := <-scanErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			line = l
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warnw("failed to parse request", "error", err)
			s.write(s.errorResponse(nil, -32700, "Parse error", err.Error()))
			continue
		}

		if resp := s.handleRequest(ctx, &req); resp != nil {
			s.write(resp)
		}
	}
}

func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.out.Encode(v); err != nil {
		s.logger.Errorw("failed to encode message", "error", err)
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools":   map[string]interface{}{},
				"logging": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    s.name,
				"version": s.version,
			},
		},
	}
}
