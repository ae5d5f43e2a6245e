// Package geometry maps region rectangles between an image's natural pixel
// space and the space it is currently rendered in.
//
// # Coordinate System
//
// Both spaces put (0,0) at the top-left corner with X increasing rightward and
// Y increasing downward. Natural space is the decoded image's pixel grid;
// screen space is the same grid after the layout has scaled it.
//
// A Mapper is a pure value derived from one pair of rendered and natural sizes.
// It must be rebuilt on every draw: the rendered size changes on resize without
// the region model observing anything.
//
//	m, err := geometry.NewMapper(rendered, natural)
//	if errors.Is(err, geometry.ErrImageNotReady) {
//	    // wait for the image to decode
//	}
//	screen := m.ToScreen(geometry.Rect{X: 10, Y: 10, W: 50, H: 20})
package geometry
