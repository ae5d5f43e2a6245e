package editor

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/imaging"
	"github.com/ironsheep/redact-editor/internal/overlay"
	"github.com/ironsheep/redact-editor/internal/regions"
)

// User-facing messages.
const (
	msgUploadFailed = "Error processing image. Please try again."
	msgImageFailed  = "The uploaded image could not be displayed."
	msgExportFailed = "Failed to generate blurred image."
)

// Options configures a Controller. Uploader, Redactor and Saver are required.
type Options struct {
	Uploader Uploader
	Redactor Redactor
	Saver    Saver

	// View defaults to a no-op view.
	View View
	// Renderer defaults to an overlay.MemoryRenderer.
	Renderer overlay.Renderer
	// Sources receive the decoded image of each ready session.
	Sources []ImageSource

	// Viewport is the initial area the image is laid out in. Zero means the
	// image is shown at its natural size.
	Viewport geometry.Size
	// ResizeDebounce coalesces resize redraws arriving within the window.
	// Zero redraws synchronously on every resize.
	ResizeDebounce time.Duration

	// Decode turns a payload into natural dimensions. Defaults to imaging.DecodePayload.
	Decode func([]byte) (*imaging.Payload, error)

	Logger *zap.SugaredLogger
}

// Controller owns the single editing session and serializes every trigger
// against it. Upload, export and payload decoding run outside the lock; their
// completions re-enter through it and are dropped when the state they were
// started from is gone.
type Controller struct {
	uploader Uploader
	redactor Redactor
	saver    Saver
	view     View
	sources  []ImageSource
	decode   func([]byte) (*imaging.Payload, error)
	logger   *zap.SugaredLogger
	debounce func(func())
	workers  sync.WaitGroup

	mu        sync.Mutex
	state     State
	sess      *session
	model     *regions.Model
	overlay   *overlay.Overlay
	viewport  geometry.Size
	exporting bool
	closed    bool
}

// New creates an idle Controller.
func New(opts Options) (*Controller, error) {
	if opts.Uploader == nil || opts.Redactor == nil || opts.Saver == nil {
		return nil, errors.New("editor: uploader, redactor and saver are required")
	}
	c := &Controller{
		uploader: opts.Uploader,
		redactor: opts.Redactor,
		saver:    opts.Saver,
		view:     opts.View,
		sources:  opts.Sources,
		decode:   opts.Decode,
		logger:   opts.Logger,
		model:    regions.NewModel(),
		viewport: opts.Viewport,
	}
	if c.view == nil {
		c.view = nopView{}
	}
	if c.decode == nil {
		c.decode = imaging.DecodePayload
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	if opts.ResizeDebounce > 0 {
		c.debounce = debounce.New(opts.ResizeDebounce)
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = overlay.NewMemoryRenderer()
	}
	c.overlay = overlay.New(c.model, renderer)
	return c, nil
}

// BeginUpload sends a file to the upload collaborator and, on success, loads
// the result as the new session. It is rejected with ErrBusy while another
// upload is pending. On failure the editor returns to the state it was in
// and the user is notified; the returned error matches ErrTransport.
func (c *Controller) BeginUpload(ctx context.Context, filename string, data []byte) error {
	c.mu.Lock()
	if c.state == Loading {
		c.mu.Unlock()
		c.logger.Debugw("upload ignored while loading", "file", filename)
		return ErrBusy
	}
	prior := c.state
	c.state = Loading
	c.view.SetLoading(true)
	c.mu.Unlock()

	c.logger.Infow("uploading image", "file", filename, "bytes", len(data))
	res, err := c.uploader.Upload(ctx, filename, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.SetLoading(false)

	if err == nil {
		err = c.loadSessionLocked(res)
	}
	if err != nil {
		c.state = prior
		if c.state == Editing && c.sess == nil {
			// the prior session failed to decode while we were loading
			c.state = Idle
			c.view.ShowUpload()
		}
		// the prior session may have become ready while we were loading
		if err := c.renderLocked(); err != nil {
			c.logger.Errorw("redraw after failed upload", "error", err)
		}
		c.logger.Warnw("upload failed", "file", filename, "error", err)
		c.view.Notify(msgUploadFailed)
		return transportError(err)
	}
	c.logger.Infow("session loaded", "file", filename, "regions", c.model.Count())
	return nil
}

// LoadSession installs an upload result directly, replacing any current
// session. The first draw happens once the payload has been decoded.
func (c *Controller) LoadSession(res *UploadResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Loading {
		return ErrBusy
	}
	return c.loadSessionLocked(res)
}

func (c *Controller) loadSessionLocked(res *UploadResult) error {
	if res == nil || len(res.Image) == 0 {
		return errors.Wrap(regions.ErrMalformed, "upload result has no image")
	}
	if err := c.model.Load(res.Boxes); err != nil {
		return err
	}

	s := newSession(res.Image)
	c.sess = s
	if err := c.overlay.Clear(); err != nil {
		c.logger.Warnw("clearing overlay", "error", err)
	}
	c.setSources(nil)
	c.state = Editing
	c.view.ShowEditor()

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.awaitImage(s)
	}()
	return nil
}

// awaitImage decodes the session payload and fires the session's ready
// signal. A completion for a session that has since been replaced is dropped.
func (c *Controller) awaitImage(s *session) {
	p, err := c.decode(s.image)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		s.err = err
	} else {
		s.natural = p.Natural()
		s.decoded = p.Image
	}
	close(s.ready)

	if c.sess != s {
		c.logger.Debugw("discarding decode of replaced session")
		return
	}
	if err != nil {
		c.logger.Errorw("image payload could not be decoded", "error", err)
		if c.state == Loading {
			// the pending upload owns the next transition
			c.dropSessionLocked()
		} else {
			c.discardLocked()
		}
		c.view.Notify(msgImageFailed)
		return
	}

	c.logger.Debugw("image ready", "width", s.natural.W, "height", s.natural.H)
	c.setSources(s.decoded)
	if err := c.renderLocked(); err != nil {
		c.logger.Errorw("initial draw failed", "error", err)
	}
}

// WaitReady blocks until the current session's image has been decoded.
func (c *Controller) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	s := c.sess
	c.mu.Unlock()
	if s == nil {
		return ErrWrongState
	}
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	// the ready handler still holds the lock while it draws
	c.mu.Lock()
	c.mu.Unlock()
	return s.err
}

// OnResize records a new viewport and, while editing, redraws the overlay
// from fresh rendered dimensions. It never touches the region model.
func (c *Controller) OnResize(viewport geometry.Size) error {
	c.mu.Lock()
	c.viewport = viewport
	if c.state != Editing {
		c.mu.Unlock()
		return nil
	}
	if c.debounce != nil {
		c.mu.Unlock()
		c.debounce(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.closed {
				return
			}
			if err := c.renderLocked(); err != nil {
				c.logger.Errorw("resize redraw failed", "error", err)
			}
		})
		return nil
	}
	defer c.mu.Unlock()
	return c.renderLocked()
}

// renderLocked draws the overlay for the current session, or does nothing
// when there is none or its image is not decoded yet.
func (c *Controller) renderLocked() error {
	if c.state != Editing || c.sess == nil || !c.sess.isReady() {
		return nil
	}
	rendered := geometry.FitWithin(c.sess.natural, c.viewport)
	return c.overlay.Draw(rendered, c.sess.natural)
}

// Toggle flips the region at index i and redraws. An out-of-range index is
// a caller bug: it is logged and returned, and nothing changes.
func (c *Controller) Toggle(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.interactiveLocked(); err != nil {
		return err
	}
	if err := c.overlay.Click(i); err != nil {
		if errors.Is(err, regions.ErrInvalidIndex) {
			c.logger.Errorw("toggle of unknown region", "index", i, "count", c.model.Count())
		}
		return err
	}
	return nil
}

// Click toggles the topmost region under a screen-space point. It reports
// the toggled index, or false when the point hit no region.
func (c *Controller) Click(p geometry.Point) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.interactiveLocked(); err != nil {
		return -1, false, err
	}
	i, ok := c.overlay.HitTest(p)
	if !ok {
		return -1, false, nil
	}
	if err := c.overlay.Click(i); err != nil {
		return -1, false, err
	}
	return i, true, nil
}

// SelectAll marks every region active or inactive and redraws.
func (c *Controller) SelectAll(active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.interactiveLocked(); err != nil {
		return err
	}
	c.model.SetAll(active)
	return c.overlay.Redraw()
}

func (c *Controller) interactiveLocked() error {
	if c.state != Editing || c.sess == nil {
		return errors.Wrapf(ErrWrongState, "state %s", c.state)
	}
	if !c.sess.isReady() {
		return geometry.ErrImageNotReady
	}
	return nil
}

// ExportActive submits the session image and its active regions to the
// redaction collaborator and saves the result as DefaultFilename. The
// session stays in Editing whether or not it succeeds. A second export while
// one is pending is rejected with ErrBusy.
func (c *Controller) ExportActive(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Editing || c.sess == nil || len(c.sess.image) == 0 {
		c.mu.Unlock()
		return errors.Wrapf(ErrWrongState, "export in state %s", c.state)
	}
	if c.exporting {
		c.mu.Unlock()
		c.logger.Debugw("export ignored while another is pending")
		return ErrBusy
	}
	s := c.sess
	boxes := lo.Map(c.model.ActiveRegions(), func(r regions.Region, _ int) regions.Box { return r.Box })
	c.exporting = true
	c.view.SetLoading(true)
	c.mu.Unlock()

	c.logger.Infow("exporting", "regions", len(boxes))
	out, err := c.redactor.Redact(ctx, s.image, boxes)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.exporting = false
	c.view.SetLoading(false)

	if err == nil && c.sess != s {
		c.logger.Infow("session replaced during export, result dropped")
		return nil
	}
	if err == nil {
		err = c.saver.Save(DefaultFilename, out)
	}
	if err != nil {
		c.logger.Warnw("export failed", "error", err)
		c.view.Notify(msgExportFailed)
		return transportError(err)
	}
	c.logger.Infow("export saved", "file", DefaultFilename, "bytes", len(out))
	return nil
}

// Reset discards the session and returns to Idle. It is rejected with
// ErrBusy while an upload is pending.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Loading {
		return ErrBusy
	}
	c.discardLocked()
	return nil
}

func (c *Controller) discardLocked() {
	c.dropSessionLocked()
	c.state = Idle
	c.view.ShowUpload()
}

// dropSessionLocked releases the session, its regions and the overlay
// without changing state.
func (c *Controller) dropSessionLocked() {
	c.sess = nil
	c.model.Clear()
	if err := c.overlay.Clear(); err != nil {
		c.logger.Warnw("clearing overlay", "error", err)
	}
	c.setSources(nil)
}

func (c *Controller) setSources(img image.Image) {
	for _, src := range c.sources {
		src.SetSource(img)
	}
}

// Close stops pending resize redraws and waits for background image decodes
// to finish. No redraw runs once Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.workers.Wait()
}

// Snapshot is a read-only view of the editor.
type Snapshot struct {
	State       State            `json:"state"`
	Ready       bool             `json:"ready"`
	Exporting   bool             `json:"exporting"`
	HasImage    bool             `json:"has_image"`
	Natural     geometry.Size    `json:"natural"`
	Viewport    geometry.Size    `json:"viewport"`
	Count       int              `json:"count"`
	ActiveCount int              `json:"active_count"`
	Regions     []regions.Region `json:"regions"`
	Frame       *overlay.Frame   `json:"frame,omitempty"`
}

// Snapshot returns the current editor state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:       c.state,
		Exporting:   c.exporting,
		Viewport:    c.viewport,
		Count:       c.model.Count(),
		ActiveCount: c.model.ActiveCount(),
		Regions:     c.model.All(),
	}
	if c.sess != nil {
		snap.HasImage = len(c.sess.image) > 0
		snap.Ready = c.sess.isReady()
		if snap.Ready {
			snap.Natural = c.sess.natural
		}
	}
	if f, ok := c.overlay.Frame(); ok {
		snap.Frame = &f
	}
	return snap
}

// Image returns the current session payload, or nil in Idle.
func (c *Controller) Image() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.image
}

func transportError(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

type nopView struct{}

func (nopView) ShowUpload()     {}
func (nopView) ShowEditor()     {}
func (nopView) SetLoading(bool) {}
func (nopView) Notify(string)   {}
