package server

import "time"

const (
	screenUpload = "upload"
	screenEditor = "editor"
)

// messageParams is the payload of a notifications/message notification.
type messageParams struct {
	Level  string      `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data"`
}

// ShowUpload records that the upload screen is showing.
func (s *Server) ShowUpload() { s.setScreen(screenUpload) }

// ShowEditor records that the editor screen is showing.
func (s *Server) ShowEditor() { s.setScreen(screenEditor) }

// SetLoading records the loading indicator.
func (s *Server) SetLoading(on bool) {
	s.viewMu.Lock()
	s.loading = on
	s.viewMu.Unlock()
}

// Notify sends a user-facing message to the client.
func (s *Server) Notify(message string) {
	s.logger.Infow("notify", "message", message)
	s.write(MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: messageParams{
			Level:  "error",
			Logger: s.name,
			Data: map[string]interface{}{
				"message": message,
				"time":    time.Now().UTC().Format(time.RFC3339),
			},
		},
	})
}

func (s *Server) setScreen(name string) {
	s.viewMu.Lock()
	s.screen = name
	s.viewMu.Unlock()
}

func (s *Server) viewState() (string, bool) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.screen, s.loading
}
