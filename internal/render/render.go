// Package render composes a cutout onto a backdrop: watermarking, geometric
// transforms, shadow synthesis and alpha blending. Everything here is a pure
// function of its inputs and safe to call concurrently.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"carstage/internal/brand"
	"carstage/internal/models"
)

const (
	minScale = 0.5
	maxScale = 2.0

	watermarkOpacity = 0.16
	shadowOpacity    = 0.26
)

// Composite renders the cutout over the background at the cutout's native
// resolution. The background is resized to match if needed; the watermark
// (free users only) is clipped to the subject's own alpha silhouette.
func Composite(cutout image.Image, background image.Image, params models.RenderParams, paid bool, watermarkText string) *image.NRGBA {
	car := toNRGBA(cutout)
	w := car.Bounds().Dx()
	h := car.Bounds().Dy()

	if background.Bounds().Dx() != w || background.Bounds().Dy() != h {
		background = imaging.Resize(background, w, h, imaging.Lanczos)
	}
	canvas := imaging.Clone(background)

	if !paid {
		car = watermarkSubject(car, params.RotateDeg, watermarkText)
	}

	scale := clampFloat(params.Scale, minScale, maxScale)
	if math.Abs(scale-1.0) > 1e-4 {
		car = imaging.Resize(car, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
	}

	if math.Abs(params.RotateDeg) > 1e-3 {
		// Expand the canvas so rotated corners are not clipped.
		car = imaging.Rotate(car, params.RotateDeg, color.NRGBA{})
	}

	cw := car.Bounds().Dx()
	ch := car.Bounds().Dy()

	ox, oy := params.OffsetX, params.OffsetY
	if params.SnapCenter {
		ox, oy = 0, 0
	}
	x := int(math.Floor(float64(w-cw)/2 + ox))
	y := int(math.Floor(float64(h-ch)/2 + oy))

	if params.Shadow {
		applySoftShadow(canvas, car, x, y, shadowOpacity)
	}

	draw.Draw(canvas, image.Rect(x, y, x+cw, y+ch), car, car.Bounds().Min, draw.Over)
	return canvas
}

// watermarkSubject overlays tiled brand text aligned to the subject's
// rotation and clips it to the subject alpha mask, so the mark never shows
// over transparent regions.
func watermarkSubject(car *image.NRGBA, angleDeg float64, text string) *image.NRGBA {
	w := car.Bounds().Dx()
	h := car.Bounds().Dy()
	if _, ok := alphaBBox(car); !ok {
		return car
	}

	base := maxInt(w, h)
	fontSize := math.Max(14, float64(base)*0.035)
	step := int(fontSize * 4.2)

	layer := image.NewNRGBA(image.Rect(0, 0, w, h))
	alpha := 255 * watermarkOpacity
	fill := color.NRGBA{29, 78, 216, uint8(alpha)}
	if err := brand.TileText(layer, text, fontSize, step, fill, true); err != nil {
		return car
	}

	if angleDeg != 0 {
		rotated := imaging.Rotate(layer, angleDeg, color.NRGBA{})
		layer = imaging.CropAnchor(rotated, w, h, imaging.Center)
	}

	// Watermark clipping: intersect the layer alpha with the subject alpha.
	for y := 0; y < h; y++ {
		lrow := y * layer.Stride
		crow := y * car.Stride
		for x := 0; x < w; x++ {
			la := &layer.Pix[lrow+x*4+3]
			ca := car.Pix[crow+x*4+3]
			*la = uint8(uint16(*la) * uint16(ca) / 255)
		}
	}

	out := imaging.Clone(car)
	draw.Draw(out, out.Bounds(), layer, image.Point{}, draw.Over)
	return out
}

// applySoftShadow puts a blurred ground ellipse under the subject's visible
// footprint, composited onto the background before the subject itself.
func applySoftShadow(bg *image.NRGBA, car *image.NRGBA, posX, posY int, opacity float64) {
	bbox, ok := alphaBBox(car)
	if !ok {
		return
	}

	carW := bbox.Dx()
	carH := bbox.Dy()
	ellW := int(float64(carW) * 0.72)
	ellH := maxInt(12, int(float64(carH)*0.10))

	cx := posX + bbox.Min.X + carW/2
	cy := posY + bbox.Min.Y + int(float64(carH)*0.92)

	a := uint8(255 * clampFloat(opacity, 0, 1))
	shadow := image.NewNRGBA(bg.Bounds())
	fillEllipse(shadow, cx, cy, ellW/2, ellH/2, color.NRGBA{0, 0, 0, a})

	sigma := math.Max(8, float64(ellH)*0.65) * 0.5
	soft := imaging.Blur(shadow, sigma)
	draw.Draw(bg, bg.Bounds(), soft, image.Point{}, draw.Over)
}

// alphaBBox finds the tight bounding box of pixels with non-zero alpha.
func alphaBBox(img *image.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] > 0 {
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func fillEllipse(dst *image.NRGBA, cx, cy, rw, rh int, col color.NRGBA) {
	if rw < 1 || rh < 1 {
		return
	}
	b := dst.Bounds()
	x0 := clampInt(cx-rw, b.Min.X, b.Max.X)
	x1 := clampInt(cx+rw, b.Min.X, b.Max.X)
	y0 := clampInt(cy-rh, b.Min.Y, b.Max.Y)
	y1 := clampInt(cy+rh, b.Min.Y, b.Max.Y)
	frw := float64(rw)
	frh := float64(rh)
	for y := y0; y < y1; y++ {
		dy := float64(y-cy) / frh
		for x := x0; x < x1; x++ {
			dx := float64(x-cx) / frw
			if dx*dx+dy*dy <= 1 {
				dst.SetNRGBA(x, y, col)
			}
		}
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
