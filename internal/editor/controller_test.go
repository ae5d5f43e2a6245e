package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/imaging"
	"github.com/ironsheep/redact-editor/internal/overlay"
	"github.com/ironsheep/redact-editor/internal/regions"
)

// pngPayload returns a PNG of the given size.
func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

type fakeUploader struct {
	result *UploadResult
	err    error
	gate   chan struct{}
	calls  int
	mu     sync.Mutex
}

func (f *fakeUploader) Upload(ctx context.Context, _ string, _ []byte) (*UploadResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

type fakeRedactor struct {
	mu    sync.Mutex
	image []byte
	boxes []regions.Box
	out   []byte
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeRedactor) Redact(ctx context.Context, img []byte, boxes []regions.Box) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.image = img
	f.boxes = boxes
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.out, f.err
}

type fakeSaver struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeSaver) Save(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[name] = data
	return nil
}

type fakeView struct {
	mu      sync.Mutex
	screen  string
	loading bool
	notes   []string
}

func (v *fakeView) ShowUpload() { v.mu.Lock(); v.screen = "upload"; v.mu.Unlock() }
func (v *fakeView) ShowEditor() { v.mu.Lock(); v.screen = "editor"; v.mu.Unlock() }
func (v *fakeView) SetLoading(b bool) {
	v.mu.Lock()
	v.loading = b
	v.mu.Unlock()
}
func (v *fakeView) Notify(msg string) {
	v.mu.Lock()
	v.notes = append(v.notes, msg)
	v.mu.Unlock()
}

func (v *fakeView) snapshot() (string, bool, []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.screen, v.loading, append([]string(nil), v.notes...)
}

type fakeSource struct {
	mu  sync.Mutex
	img image.Image
	set int
}

func (f *fakeSource) SetSource(img image.Image) {
	f.mu.Lock()
	f.img = img
	f.set++
	f.mu.Unlock()
}

type harness struct {
	ctrl     *Controller
	uploader *fakeUploader
	redactor *fakeRedactor
	saver    *fakeSaver
	view     *fakeView
	mem      *overlay.MemoryRenderer
	source   *fakeSource
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		uploader: &fakeUploader{},
		redactor: &fakeRedactor{out: []byte("redacted")},
		saver:    &fakeSaver{},
		view:     &fakeView{},
		mem:      overlay.NewMemoryRenderer(),
		source:   &fakeSource{},
	}
	opts := Options{
		Uploader: h.uploader,
		Redactor: h.redactor,
		Saver:    h.saver,
		View:     h.view,
		Renderer: h.mem,
		Sources:  []ImageSource{h.source},
		Logger:   zaptest.NewLogger(t).Sugar(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctrl, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.ctrl = ctrl
	t.Cleanup(ctrl.Close)
	return h
}

func waitReady(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
}

func (h *harness) loadReady(t *testing.T, boxes ...regions.Box) {
	t.Helper()
	if err := h.ctrl.LoadSession(&UploadResult{Image: pngPayload(t, 200, 100), Boxes: boxes}); err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	waitReady(t, h.ctrl)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("New without collaborators should fail")
	}
	if _, err := New(Options{Uploader: &fakeUploader{}, Redactor: &fakeRedactor{}, Saver: &fakeSaver{}}); err != nil {
		t.Fatalf("New with defaults failed: %v", err)
	}
}

func TestController_ScenarioA_ExportDefault(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 10, Y: 10, W: 50, H: 20})

	snap := h.ctrl.Snapshot()
	if snap.State != Editing || snap.ActiveCount != 1 {
		t.Fatalf("state=%s active=%d", snap.State, snap.ActiveCount)
	}

	if err := h.ctrl.ExportActive(context.Background()); err != nil {
		t.Fatalf("ExportActive failed: %v", err)
	}
	want := []regions.Box{{X: 10, Y: 10, W: 50, H: 20}}
	if diff := cmp.Diff(want, h.redactor.boxes); diff != "" {
		t.Errorf("exported boxes (-want +got):\n%s", diff)
	}
	if !bytes.Equal(h.redactor.image, h.ctrl.Image()) {
		t.Error("export did not send the session image")
	}
	if got := h.saver.files[DefaultFilename]; string(got) != "redacted" {
		t.Errorf("saved %q under %s", got, DefaultFilename)
	}
	if h.ctrl.Snapshot().State != Editing {
		t.Error("export ended the session")
	}
}

func TestController_ScenarioB_ExportNone(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 10, Y: 10, W: 50, H: 20})

	if err := h.ctrl.Toggle(0); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if got := h.ctrl.Snapshot().ActiveCount; got != 0 {
		t.Fatalf("ActiveCount = %d, want 0", got)
	}
	if err := h.ctrl.ExportActive(context.Background()); err != nil {
		t.Fatalf("ExportActive failed: %v", err)
	}
	if len(h.redactor.boxes) != 0 {
		t.Errorf("expected no exported boxes, got %+v", h.redactor.boxes)
	}
}

func TestController_ScenarioC_InvalidIndex(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 0, Y: 0, W: 5, H: 5}, regions.Box{X: 10, Y: 10, W: 5, H: 5})
	draws := h.mem.Draws()

	err := h.ctrl.Toggle(5)
	if !errors.Is(err, regions.ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if got := h.ctrl.Snapshot().ActiveCount; got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if h.mem.Draws() != draws {
		t.Error("invalid toggle redrew the overlay")
	}
	if _, _, notes := h.view.snapshot(); len(notes) != 0 {
		t.Errorf("invalid index surfaced to the user: %v", notes)
	}
}

func TestController_ScenarioD_Reset(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 1, Y: 1, W: 5, H: 5})
	_ = h.ctrl.Toggle(0)

	if err := h.ctrl.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != Idle || snap.Count != 0 || snap.HasImage || snap.Frame != nil {
		t.Errorf("unexpected snapshot after reset: %+v", snap)
	}
	if h.ctrl.Image() != nil {
		t.Error("image payload retained after reset")
	}
	if _, ok := h.mem.Frame(); ok {
		t.Error("overlay not cleared")
	}
	if screen, _, _ := h.view.snapshot(); screen != "upload" {
		t.Errorf("screen = %q, want upload", screen)
	}
	h.source.mu.Lock()
	if h.source.img != nil {
		t.Error("image source still bound after reset")
	}
	h.source.mu.Unlock()

	// reset from idle is allowed
	if err := h.ctrl.Reset(); err != nil {
		t.Errorf("Reset from idle failed: %v", err)
	}
}

func TestController_UploadSuccess(t *testing.T) {
	h := newHarness(t, nil)
	h.uploader.result = &UploadResult{
		Image: pngPayload(t, 100, 100),
		Boxes: []regions.Box{{X: 1, Y: 2, W: 3, H: 4}, {ID: 1, X: 5, Y: 6, W: 7, H: 8}},
	}

	if err := h.ctrl.BeginUpload(context.Background(), "a.png", []byte("raw")); err != nil {
		t.Fatalf("BeginUpload failed: %v", err)
	}
	waitReady(t, h.ctrl)

	snap := h.ctrl.Snapshot()
	if snap.State != Editing || snap.Count != 2 || snap.ActiveCount != 2 || !snap.Ready {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Natural != (geometry.Size{W: 100, H: 100}) {
		t.Errorf("natural = %+v", snap.Natural)
	}
	screen, loading, _ := h.view.snapshot()
	if screen != "editor" || loading {
		t.Errorf("view: screen=%q loading=%v", screen, loading)
	}
	if _, ok := h.mem.Frame(); !ok {
		t.Error("no frame drawn once the image was ready")
	}
}

func TestController_UploadFailureFromIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.uploader.err = errors.New("connection refused")

	err := h.ctrl.BeginUpload(context.Background(), "a.png", []byte("raw"))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != Idle || snap.Count != 0 || snap.HasImage {
		t.Errorf("failed upload leaked state: %+v", snap)
	}
	_, loading, notes := h.view.snapshot()
	if loading || len(notes) != 1 {
		t.Errorf("view: loading=%v notes=%v", loading, notes)
	}
}

func TestController_UploadFailureKeepsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 1, Y: 1, W: 5, H: 5})
	_ = h.ctrl.Toggle(0)
	before := h.ctrl.Image()

	h.uploader.err = errors.New("500")
	if err := h.ctrl.BeginUpload(context.Background(), "b.png", nil); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.State != Editing || snap.Count != 1 || snap.ActiveCount != 0 {
		t.Errorf("prior session not restored: %+v", snap)
	}
	if !bytes.Equal(before, h.ctrl.Image()) {
		t.Error("prior image replaced")
	}
}

func TestController_UploadMalformedResult(t *testing.T) {
	h := newHarness(t, nil)
	h.uploader.result = &UploadResult{
		Image: pngPayload(t, 10, 10),
		Boxes: []regions.Box{{X: 1, Y: 1, W: 2, H: 2}, {X: 1, Y: 1, W: 0, H: 2}},
	}

	err := h.ctrl.BeginUpload(context.Background(), "a.png", nil)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, regions.ErrMalformed) {
		t.Fatalf("expected transport+malformed, got %v", err)
	}
	if snap := h.ctrl.Snapshot(); snap.State != Idle || snap.Count != 0 {
		t.Errorf("malformed result loaded: %+v", snap)
	}

	h.uploader.result = &UploadResult{Boxes: []regions.Box{{X: 1, Y: 1, W: 2, H: 2}}}
	if err := h.ctrl.BeginUpload(context.Background(), "a.png", nil); err == nil {
		t.Error("result without an image should fail")
	}
}

func TestController_UploadBusy(t *testing.T) {
	h := newHarness(t, nil)
	h.uploader.gate = make(chan struct{})
	h.uploader.result = &UploadResult{Image: pngPayload(t, 10, 10)}

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.BeginUpload(context.Background(), "a.png", nil)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for h.ctrl.Snapshot().State != Loading {
		if time.Now().After(deadline) {
			t.Fatal("never entered loading")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.ctrl.BeginUpload(context.Background(), "b.png", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("second upload: expected ErrBusy, got %v", err)
	}
	if err := h.ctrl.Reset(); !errors.Is(err, ErrBusy) {
		t.Errorf("reset while loading: expected ErrBusy, got %v", err)
	}
	if err := h.ctrl.LoadSession(&UploadResult{Image: []byte{1}}); !errors.Is(err, ErrBusy) {
		t.Errorf("load while loading: expected ErrBusy, got %v", err)
	}
	if err := h.ctrl.Toggle(0); !errors.Is(err, ErrWrongState) {
		t.Errorf("toggle while loading: expected ErrWrongState, got %v", err)
	}

	close(h.uploader.gate)
	if err := <-done; err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	h.uploader.mu.Lock()
	calls := h.uploader.calls
	h.uploader.mu.Unlock()
	if calls != 1 {
		t.Errorf("uploader called %d times, want 1", calls)
	}
}

func TestController_ExportBusy(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 1, Y: 1, W: 5, H: 5})
	h.redactor.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.ExportActive(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for !h.ctrl.Snapshot().Exporting {
		if time.Now().After(deadline) {
			t.Fatal("export never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.ctrl.ExportActive(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second export: expected ErrBusy, got %v", err)
	}
	// the session stays editable while exporting
	if err := h.ctrl.Toggle(0); err != nil {
		t.Errorf("toggle during export failed: %v", err)
	}

	close(h.redactor.gate)
	if err := <-done; err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if h.redactor.calls != 1 {
		t.Errorf("redactor called %d times, want 1", h.redactor.calls)
	}
}

func TestController_ExportFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 1, Y: 1, W: 5, H: 5})
	h.redactor.err = errors.New("bad gateway")

	err := h.ctrl.ExportActive(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if snap := h.ctrl.Snapshot(); snap.State != Editing || snap.Exporting || snap.Count != 1 {
		t.Errorf("failed export changed state: %+v", snap)
	}
	if len(h.saver.files) != 0 {
		t.Error("failed export saved a file")
	}
	if _, _, notes := h.view.snapshot(); len(notes) != 1 {
		t.Errorf("notes = %v, want one failure notice", notes)
	}

	// user retries
	h.redactor.err = nil
	if err := h.ctrl.ExportActive(context.Background()); err != nil {
		t.Errorf("retry failed: %v", err)
	}
}

func TestController_ExportRequiresEditing(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.ExportActive(context.Background()); !errors.Is(err, ErrWrongState) {
		t.Errorf("expected ErrWrongState, got %v", err)
	}
	if h.redactor.calls != 0 {
		t.Error("redactor called from idle")
	}
}

func TestController_RenderWaitsForImage(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(o *Options) {
		o.Decode = func(b []byte) (*imaging.Payload, error) {
			<-release
			return imaging.DecodePayload(b)
		}
	})

	if err := h.ctrl.LoadSession(&UploadResult{
		Image: pngPayload(t, 400, 200),
		Boxes: []regions.Box{{X: 40, Y: 20, W: 100, H: 50}},
	}); err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}

	if err := h.ctrl.OnResize(geometry.Size{W: 200, H: 200}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}
	if err := h.ctrl.Toggle(0); !errors.Is(err, geometry.ErrImageNotReady) {
		t.Errorf("toggle before ready: expected ErrImageNotReady, got %v", err)
	}
	if h.mem.Draws() != 0 {
		t.Fatalf("drew %d frames before the image decoded", h.mem.Draws())
	}

	close(release)
	waitReady(t, h.ctrl)

	f, ok := h.mem.Frame()
	if !ok {
		t.Fatal("no frame after ready")
	}
	if f.Rendered != (geometry.Size{W: 200, H: 100}) {
		t.Errorf("rendered = %+v, want 200x100", f.Rendered)
	}
	if f.Boxes[0].Rect != (geometry.Rect{X: 20, Y: 10, W: 50, H: 25}) {
		t.Errorf("box rect = %+v", f.Boxes[0].Rect)
	}
	h.source.mu.Lock()
	if h.source.img == nil {
		t.Error("image source not bound on ready")
	}
	h.source.mu.Unlock()
}

func TestController_StaleDecodeDiscarded(t *testing.T) {
	var mu sync.Mutex
	gates := map[int]chan struct{}{}
	h := newHarness(t, func(o *Options) {
		o.Decode = func(b []byte) (*imaging.Payload, error) {
			p, err := imaging.DecodePayload(b)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			g := gates[p.Width]
			mu.Unlock()
			<-g
			return p, nil
		}
	})
	gates[100] = make(chan struct{})
	gates[300] = make(chan struct{})

	if err := h.ctrl.LoadSession(&UploadResult{Image: pngPayload(t, 100, 100)}); err != nil {
		t.Fatalf("LoadSession A failed: %v", err)
	}
	if err := h.ctrl.LoadSession(&UploadResult{Image: pngPayload(t, 300, 100)}); err != nil {
		t.Fatalf("LoadSession B failed: %v", err)
	}

	close(gates[100])
	// give A's completion a chance to run; it must not draw
	time.Sleep(20 * time.Millisecond)
	if h.mem.Draws() != 0 {
		t.Fatalf("stale session drew %d frames", h.mem.Draws())
	}

	close(gates[300])
	waitReady(t, h.ctrl)
	snap := h.ctrl.Snapshot()
	if snap.Natural != (geometry.Size{W: 300, H: 100}) {
		t.Errorf("natural = %+v, want the second session's size", snap.Natural)
	}
}

func TestController_DecodeFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.LoadSession(&UploadResult{Image: []byte("not an image")}); err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.ctrl.WaitReady(ctx); err == nil {
		t.Fatal("WaitReady should report the decode error")
	}
	if snap := h.ctrl.Snapshot(); snap.State != Idle || snap.HasImage {
		t.Errorf("undecodable session kept: %+v", snap)
	}
	if _, _, notes := h.view.snapshot(); len(notes) != 1 {
		t.Errorf("notes = %v", notes)
	}
}

func TestController_DecodeFailureDuringUpload(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(o *Options) {
		o.Decode = func(b []byte) (*imaging.Payload, error) {
			<-release
			return nil, errors.New("corrupt payload")
		}
	})
	h.uploader.gate = make(chan struct{})
	h.uploader.err = errors.New("connection reset")

	if err := h.ctrl.LoadSession(&UploadResult{Image: pngPayload(t, 10, 10)}); err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.BeginUpload(context.Background(), "next.png", []byte("x"))
	}()
	deadline := time.Now().Add(5 * time.Second)
	for h.ctrl.Snapshot().State != Loading {
		if time.Now().After(deadline) {
			t.Fatal("never entered loading")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	for {
		if _, _, notes := h.view.snapshot(); len(notes) == 1 && notes[0] == msgImageFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("decode failure never reported")
		}
		time.Sleep(time.Millisecond)
	}
	if snap := h.ctrl.Snapshot(); snap.State != Loading || snap.HasImage {
		t.Fatalf("decode failure disturbed the pending upload: %+v", snap)
	}
	if err := h.ctrl.BeginUpload(context.Background(), "other.png", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("upload while loading: expected ErrBusy, got %v", err)
	}

	close(h.uploader.gate)
	if err := <-done; !errors.Is(err, ErrTransport) {
		t.Fatalf("upload: expected ErrTransport, got %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.State != Idle || snap.HasImage {
		t.Errorf("failed upload over a dropped session: %+v", snap)
	}
	if screen, _, _ := h.view.snapshot(); screen != "upload" {
		t.Errorf("screen = %q, want upload", screen)
	}
	if err := h.ctrl.Toggle(0); !errors.Is(err, ErrWrongState) {
		t.Errorf("toggle after failure: expected ErrWrongState, got %v", err)
	}
}

func TestController_ResizeRedrawsWithoutMutation(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 20, Y: 10, W: 40, H: 20}, regions.Box{X: 100, Y: 50, W: 50, H: 25})
	_ = h.ctrl.Toggle(1)

	if err := h.ctrl.OnResize(geometry.Size{W: 100, H: 100}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}
	first, _ := h.mem.Frame()
	if first.Rendered != (geometry.Size{W: 100, H: 50}) {
		t.Fatalf("rendered = %+v", first.Rendered)
	}
	if first.Boxes[0].Rect != (geometry.Rect{X: 10, Y: 5, W: 20, H: 10}) {
		t.Errorf("box 0 = %+v", first.Boxes[0].Rect)
	}

	for i := 0; i < 10; i++ {
		if err := h.ctrl.OnResize(geometry.Size{W: 100, H: 100}); err != nil {
			t.Fatalf("OnResize failed: %v", err)
		}
	}
	again, _ := h.mem.Frame()
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("redundant resizes changed the frame:\n%s", diff)
	}
	snap := h.ctrl.Snapshot()
	if snap.Count != 2 || snap.ActiveCount != 1 {
		t.Errorf("resize mutated regions: %+v", snap)
	}

	// growing back past the natural size shows the image unscaled
	if err := h.ctrl.OnResize(geometry.Size{W: 4000, H: 4000}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}
	f, _ := h.mem.Frame()
	if f.Mapping.ScaleX != 1 || f.Boxes[1].Rect != (geometry.Rect{X: 100, Y: 50, W: 50, H: 25}) {
		t.Errorf("unscaled frame = %+v", f)
	}
}

func TestController_ResizeInIdleIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.OnResize(geometry.Size{W: 10, H: 10}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}
	if h.mem.Draws() != 0 {
		t.Error("resize in idle drew")
	}
	if got := h.ctrl.Snapshot().Viewport; got != (geometry.Size{W: 10, H: 10}) {
		t.Errorf("viewport not recorded: %+v", got)
	}
}

func TestController_ResizeDebounced(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ResizeDebounce = 10 * time.Millisecond })
	h.loadReady(t, regions.Box{X: 20, Y: 10, W: 40, H: 20})
	base := h.mem.Draws()

	for w := 150.0; w >= 100; w -= 10 {
		if err := h.ctrl.OnResize(geometry.Size{W: w, H: 1000}); err != nil {
			t.Fatalf("OnResize failed: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		f, _ := h.mem.Frame()
		if f.Rendered.W == 100 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("debounced redraw never landed, last frame %+v", f.Rendered)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.mem.Draws() - base; got >= 6 {
		t.Errorf("resize burst produced %d draws, expected coalescing", got)
	}
}

func TestController_CloseCancelsDebouncedRedraw(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ResizeDebounce = 20 * time.Millisecond })
	h.loadReady(t, regions.Box{X: 20, Y: 10, W: 40, H: 20})

	if err := h.ctrl.OnResize(geometry.Size{W: 100, H: 100}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}
	h.ctrl.Close()
	base := h.mem.Draws()

	time.Sleep(80 * time.Millisecond)
	if got := h.mem.Draws(); got != base {
		t.Errorf("redraw ran after Close: %d draws, want %d", got, base)
	}
}

func TestController_ClickAndSelectAll(t *testing.T) {
	h := newHarness(t, nil)
	h.loadReady(t, regions.Box{X: 0, Y: 0, W: 50, H: 50}, regions.Box{X: 100, Y: 0, W: 50, H: 50})
	if err := h.ctrl.OnResize(geometry.Size{W: 100, H: 100}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}

	i, ok, err := h.ctrl.Click(geometry.Point{X: 60, Y: 10})
	if err != nil || !ok || i != 1 {
		t.Fatalf("Click = %d,%v,%v want 1,true,nil", i, ok, err)
	}
	if _, ok, _ := h.ctrl.Click(geometry.Point{X: 40, Y: 40}); ok {
		t.Error("click on empty space toggled a region")
	}
	if got := h.ctrl.Snapshot().ActiveCount; got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}

	if err := h.ctrl.SelectAll(false); err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}
	f, _ := h.mem.Frame()
	if f.ActiveCount != 0 {
		t.Errorf("frame ActiveCount = %d after deselect", f.ActiveCount)
	}
	if err := h.ctrl.SelectAll(true); err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}
	if got := h.ctrl.Snapshot().ActiveCount; got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{Idle: "idle", Loading: "loading", Editing: "editing", State(9): "unknown"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
