package regions

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/ironsheep/redact-editor/internal/geometry"
)

var (
	// ErrInvalidIndex is returned when an index does not name a loaded region.
	ErrInvalidIndex = errors.New("region index out of range")

	// ErrMalformed is returned when a region set cannot be loaded.
	ErrMalformed = errors.New("malformed region")
)

// Box is a detected rectangle as delivered by the detector, in natural-image pixels.
type Box struct {
	ID int `json:"id"`
	X  int `json:"x"`
	Y  int `json:"y"`
	W  int `json:"w"`
	H  int `json:"h"`
}

// Validate checks that the box has a non-negative origin and a positive size.
func (b Box) Validate() error {
	var err error
	if b.X < 0 || b.Y < 0 {
		err = multierr.Append(err, fmt.Errorf("origin (%d,%d) is negative", b.X, b.Y))
	}
	if b.W <= 0 || b.H <= 0 {
		err = multierr.Append(err, fmt.Errorf("size %dx%d is not positive", b.W, b.H))
	}
	return err
}

// Region is a loaded box plus its redaction flag. Active regions will be redacted.
type Region struct {
	Box
	Active bool `json:"active"`
}

// Rect returns the region's natural-space rectangle.
func (r Region) Rect() geometry.Rect {
	return geometry.Rect{X: float64(r.X), Y: float64(r.Y), W: float64(r.W), H: float64(r.H)}
}

// Model is the ordered region set of one editing session. Indices are stable
// for the lifetime of a loaded set: toggling never reorders or removes.
//
// The zero value is an empty, usable model. Model is not safe for concurrent
// use; the editor controller serializes access.
type Model struct {
	regions []Region
}

// NewModel returns an empty model.
func NewModel() *Model { return &Model{} }

// Load replaces the whole set with boxes, every region active. A malformed box
// rejects the entire set and leaves the current one untouched; every problem
// found is reported in the returned error.
func (m *Model) Load(boxes []Box) error {
	var errs error
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "box %d", i))
		}
	}
	if errs != nil {
		return errors.Wrap(multierr.Append(ErrMalformed, errs), "load regions")
	}

	m.regions = lo.Map(boxes, func(b Box, _ int) Region {
		return Region{Box: b, Active: true}
	})
	return nil
}

// Toggle flips the active flag of the region at index i.
func (m *Model) Toggle(i int) error {
	if i < 0 || i >= len(m.regions) {
		return errors.Wrapf(ErrInvalidIndex, "toggle %d of %d", i, len(m.regions))
	}
	m.regions[i].Active = !m.regions[i].Active
	return nil
}

// SetAll marks every region active or inactive.
func (m *Model) SetAll(active bool) {
	for i := range m.regions {
		m.regions[i].Active = active
	}
}

// At returns a copy of the region at index i.
func (m *Model) At(i int) (Region, error) {
	if i < 0 || i >= len(m.regions) {
		return Region{}, errors.Wrapf(ErrInvalidIndex, "region %d of %d", i, len(m.regions))
	}
	return m.regions[i], nil
}

// All returns a copy of every region in index order.
func (m *Model) All() []Region {
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out
}

// ActiveRegions returns the active regions in index order.
func (m *Model) ActiveRegions() []Region {
	return lo.Filter(m.regions, func(r Region, _ int) bool { return r.Active })
}

// Count returns the number of loaded regions.
func (m *Model) Count() int { return len(m.regions) }

// ActiveCount returns the number of regions marked for redaction.
func (m *Model) ActiveCount() int {
	return lo.CountBy(m.regions, func(r Region) bool { return r.Active })
}

// Clear drops every region.
func (m *Model) Clear() { m.regions = nil }
