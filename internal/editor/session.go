package editor

import (
	"image"

	"github.com/ironsheep/redact-editor/internal/geometry"
)

// State is the editor's lifecycle state.
type State int

const (
	// Idle has no session; the upload view is shown.
	Idle State = iota
	// Loading is waiting for the upload collaborator.
	Loading
	// Editing has a live session and an interactive overlay.
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

// session is the single live editing session: one payload, decoded once.
// ready is closed exactly once, after natural and decoded (or err) are set.
type session struct {
	image   []byte
	ready   chan struct{}
	natural geometry.Size
	decoded image.Image
	err     error
}

func newSession(payload []byte) *session {
	return &session{image: payload, ready: make(chan struct{})}
}

func (s *session) isReady() bool {
	select {
	case <-s.ready:
		return s.err == nil
	default:
		return false
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
