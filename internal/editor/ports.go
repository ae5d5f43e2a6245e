package editor

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/ironsheep/redact-editor/internal/regions"
)

var (
	// ErrTransport is the single failure category for upload and export requests.
	ErrTransport = errors.New("transport failure")

	// ErrBusy is returned when a trigger arrives while the same kind of
	// operation is still pending.
	ErrBusy = errors.New("operation already in progress")

	// ErrWrongState is returned when a trigger is not valid in the current state.
	ErrWrongState = errors.New("not valid in current editor state")
)

// DefaultFilename is the name the redacted result is saved under.
const DefaultFilename = "privacy-protected-image.jpg"

// UploadResult is what the upload collaborator returns for one image.
type UploadResult struct {
	// Image is the encoded image payload the regions refer to.
	Image []byte
	// Boxes are the detected regions in natural-image pixels, in detection order.
	Boxes []regions.Box
}

// Uploader sends one image file for detection.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error)
}

// Redactor applies redaction to the given boxes and returns the result image.
type Redactor interface {
	Redact(ctx context.Context, image []byte, boxes []regions.Box) ([]byte, error)
}

// Saver stores the redacted result client-side.
type Saver interface {
	Save(filename string, data []byte) error
}

// View switches between the upload and editor screens and shows progress
// and notifications. Notify must not block.
type View interface {
	ShowUpload()
	ShowEditor()
	SetLoading(bool)
	Notify(message string)
}

// ImageSource receives the decoded image once a session is ready, for
// backends that draw over it. nil means the session ended.
type ImageSource interface {
	SetSource(img image.Image)
}
