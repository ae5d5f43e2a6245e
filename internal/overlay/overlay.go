package overlay

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/regions"
)

// Overlay derives screen-space boxes from a region model and pushes them to a
// rendering backend. Every Draw rebuilds the whole overlay from the model, so
// repeated draws without a model change produce identical frames.
//
// Overlay is not safe for concurrent use; the editor controller serializes it
// together with the model it reads.
type Overlay struct {
	model    *regions.Model
	renderer Renderer
	last     *Frame
}

// New returns an Overlay drawing model through renderer.
func New(model *regions.Model, renderer Renderer) *Overlay {
	return &Overlay{model: model, renderer: renderer}
}

// Build derives the frame for the given rendered and natural sizes without
// drawing it. It fails with geometry.ErrImageNotReady when the natural size is
// unknown.
func Build(model *regions.Model, rendered, natural geometry.Size) (Frame, error) {
	m, err := geometry.NewMapper(rendered, natural)
	if err != nil {
		return Frame{}, err
	}

	boxes := lo.Map(model.All(), func(r regions.Region, i int) Box {
		b := Box{
			Index:  i,
			Rect:   m.ToScreen(r.Rect()),
			Active: r.Active,
			Style:  StyleMarked,
			Hint:   HintKeep,
		}
		if !r.Active {
			b.Style = StyleExcluded
			b.Hint = HintBlur
		}
		return b
	})

	return Frame{
		Rendered:    rendered,
		Natural:     natural,
		Mapping:     m,
		Boxes:       boxes,
		ActiveCount: model.ActiveCount(),
		Total:       model.Count(),
	}, nil
}

// Draw rebuilds and draws the overlay.
func (o *Overlay) Draw(rendered, natural geometry.Size) error {
	f, err := Build(o.model, rendered, natural)
	if err != nil {
		return err
	}
	if err := o.renderer.Draw(f); err != nil {
		return errors.Wrap(err, "draw overlay")
	}
	o.last = &f
	return nil
}

// Click toggles the region at index i and redraws at the last drawn sizes.
// If the redraw fails the toggle is undone, so the model never disagrees
// with what was last drawn.
func (o *Overlay) Click(i int) error {
	if o.last == nil {
		return geometry.ErrImageNotReady
	}
	if err := o.model.Toggle(i); err != nil {
		return err
	}
	if err := o.Draw(o.last.Rendered, o.last.Natural); err != nil {
		if rerr := o.model.Toggle(i); rerr != nil {
			return multierr.Append(err, rerr)
		}
		// backends that did draw the toggled frame get the previous one back
		_ = o.renderer.Draw(*o.last)
		return err
	}
	return nil
}

// Redraw draws again at the last drawn sizes, picking up model changes.
func (o *Overlay) Redraw() error {
	if o.last == nil {
		return geometry.ErrImageNotReady
	}
	return o.Draw(o.last.Rendered, o.last.Natural)
}

// HitTest returns the index of the topmost box under the screen point p.
// Later boxes are drawn above earlier ones.
func (o *Overlay) HitTest(p geometry.Point) (int, bool) {
	if o.last == nil {
		return -1, false
	}
	for i := len(o.last.Boxes) - 1; i >= 0; i-- {
		if o.last.Boxes[i].Rect.Contains(p) {
			return o.last.Boxes[i].Index, true
		}
	}
	return -1, false
}

// ActiveCount returns the active-region count of the last drawn frame.
func (o *Overlay) ActiveCount() int {
	if o.last == nil {
		return 0
	}
	return o.last.ActiveCount
}

// Frame returns the last drawn frame.
func (o *Overlay) Frame() (Frame, bool) {
	if o.last == nil {
		return Frame{}, false
	}
	return *o.last, true
}

// Clear removes the overlay from the backend.
func (o *Overlay) Clear() error {
	o.last = nil
	return o.renderer.Clear()
}

type multiRenderer []Renderer

// Multi fans a frame out to several backends. Every backend is drawn even if
// an earlier one fails; the errors are combined.
func Multi(renderers ...Renderer) Renderer {
	return multiRenderer(renderers)
}

func (m multiRenderer) Draw(f Frame) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Draw(f))
	}
	return err
}

func (m multiRenderer) Clear() error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Clear())
	}
	return err
}
