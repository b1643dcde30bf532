package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Encode serializes the image. Two output kinds exist: jpg/jpeg (lossy,
// quality-controlled) and png (lossless).
func Encode(img image.Image, format string, quality int) ([]byte, error) {
	const op = "render.Encode"

	format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	buf := new(bytes.Buffer)
	switch format {
	case "jpg", "jpeg":
		if quality < 1 || quality > 100 {
			quality = 92
		}
		if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
	case "png":
		if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
	default:
		return nil, fmt.Errorf("%s: %q: %w", op, format, ErrUnsupportedFormat)
	}
	return buf.Bytes(), nil
}

// ClampPreview shrinks the image proportionally when its longer side exceeds
// maxDim. It never upsizes.
func ClampPreview(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}
