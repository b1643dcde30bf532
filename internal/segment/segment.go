// Package segment consumes the external foreground-segmentation capability:
// a raster in, an equally-sized raster with an alpha channel isolating the
// subject out.
package segment

import "context"

// Segmenter maps original image bytes to RGBA PNG bytes with the background
// removed. Implementations may be slow (seconds) and heavy on first call.
type Segmenter interface {
	Segment(ctx context.Context, original []byte) ([]byte, error)
}
