// Package imaging decodes and draws the editor's image payloads.
//
// The editor receives its image as an opaque encoded payload. This package turns
// that payload into a decoded image and its natural dimensions, which is the
// "image metadata ready" event the editor waits for before its first draw.
// It also holds the small raster toolkit the preview backend draws with.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For rectangles, Min is inclusive and Max is exclusive
//
// # Orientation
//
// DecodePayload applies EXIF orientation, so a portrait JPEG shot sideways
// reports the same natural size a browser would.
//
// # Thread Safety
//
// ScaledCache is safe for concurrent use. The drawing helpers mutate their
// destination image and must not be called concurrently on the same image.
//
// # Error Handling
//
// Functions return errors for:
//   - Empty or undecodable payloads
//   - Invalid base64 input
//   - Non-positive target sizes
//   - Encoding errors during preview output
package imaging
