package backgrounds

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"carstage/internal/brand"
)

var (
	ErrUnknownBackground = errors.New("unknown background")
	ErrInvalidSize       = errors.New("invalid background size")
)

// Generate produces the backdrop for bg_id at exactly w x h. Output is
// deterministic in (id, size): the procedural recipes use no randomness and
// file entries go through a fixed cover resize.
func (c *Catalog) Generate(bgID string, w, h int) (image.Image, error) {
	const op = "backgrounds.Generate"

	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%s: %dx%d: %w", op, w, h, ErrInvalidSize)
	}

	files := c.fileEntries()
	if len(files) > 0 {
		for _, e := range files {
			if e.def.ID == bgID {
				src, err := imaging.Open(e.path)
				if err != nil {
					return nil, fmt.Errorf("%s: %v", op, err)
				}
				// Cover semantics: scale to fill, center crop, no letterboxing.
				return imaging.Fill(src, w, h, imaging.Center, imaging.Lanczos), nil
			}
		}
		return nil, fmt.Errorf("%s: %q: %w", op, bgID, ErrUnknownBackground)
	}

	switch bgID {
	case "studio_neutral":
		return studioNeutral(w, h), nil
	case "outdoor_lot":
		return outdoorLot(w, h), nil
	case "branded_wall":
		return c.brandedWall(w, h)
	case "gradient_silver":
		return linearGradient(w, h, color.NRGBA{250, 250, 252, 255}, color.NRGBA{196, 198, 202, 255}), nil
	}
	return nil, fmt.Errorf("%s: %q: %w", op, bgID, ErrUnknownBackground)
}

// linearGradient interpolates per scanline on t = y/(h-1).
func linearGradient(w, h int, top, bottom color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	den := h - 1
	if den < 1 {
		den = 1
	}
	for y := 0; y < h; y++ {
		t := float64(y) / float64(den)
		c := color.NRGBA{
			R: lerp8(top.R, bottom.R, t),
			G: lerp8(top.G, bottom.G, t),
			B: lerp8(top.B, bottom.B, t),
			A: 255,
		}
		row := y * img.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			img.Pix[i] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
	return img
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

// studioNeutral is a sky gradient over a floor gradient band, darkened toward
// the edges by a soft elliptical vignette at low opacity.
func studioNeutral(w, h int) *image.NRGBA {
	img := linearGradient(w, h, color.NRGBA{245, 245, 246, 255}, color.NRGBA{220, 220, 222, 255})

	floorH := int(float64(h) * 0.22)
	if floorH > 0 {
		floor := linearGradient(w, floorH, color.NRGBA{210, 210, 212, 255}, color.NRGBA{175, 175, 178, 255})
		draw.Draw(img, image.Rect(0, h-floorH, w, h), floor, image.Point{}, draw.Src)
	}

	// Vignette mask: filled ellipse around the upper-center focus, blurred.
	mask := image.NewNRGBA(image.Rect(0, 0, w, h))
	fillEllipse(mask, w/2, int(float64(h)*0.35), int(float64(w)*0.9), int(float64(h)*0.9), color.NRGBA{255, 255, 255, 255})
	blurred := imaging.Blur(mask, float64(maxInt(w, h))/6)

	const vignette = 0.18
	for y := 0; y < h; y++ {
		row := y * img.Stride
		mrow := y * blurred.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			glow := float64(blurred.Pix[mrow+x*4]) / 255
			f := 1 - vignette*(1-glow)
			img.Pix[i] = uint8(float64(img.Pix[i]) * f)
			img.Pix[i+1] = uint8(float64(img.Pix[i+1]) * f)
			img.Pix[i+2] = uint8(float64(img.Pix[i+2]) * f)
		}
	}
	return img
}

// outdoorLot stacks a sky band over an asphalt band with a blurred horizon
// glow across the seam.
func outdoorLot(w, h int) *image.NRGBA {
	skyH := int(float64(h) * 0.58)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	if skyH > 0 {
		sky := linearGradient(w, skyH, color.NRGBA{190, 215, 235, 255}, color.NRGBA{230, 240, 248, 255})
		draw.Draw(img, image.Rect(0, 0, w, skyH), sky, image.Point{}, draw.Src)
	}
	if h-skyH > 0 {
		ground := linearGradient(w, h-skyH, color.NRGBA{90, 92, 96, 255}, color.NRGBA{55, 56, 60, 255})
		draw.Draw(img, image.Rect(0, skyH, w, h), ground, image.Point{}, draw.Src)
	}

	glow := image.NewNRGBA(image.Rect(0, 0, w, h))
	top := clampInt(skyH-30, 0, h)
	bottom := clampInt(skyH+40, 0, h)
	for y := top; y < bottom; y++ {
		row := y * glow.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			glow.Pix[i] = 255
			glow.Pix[i+1] = 255
			glow.Pix[i+2] = 255
			glow.Pix[i+3] = 24
		}
	}
	soft := imaging.Blur(glow, 9)
	draw.Draw(img, img.Bounds(), soft, image.Point{}, draw.Over)
	return img
}

// brandedWall tiles the brand text over a flat gradient, rotated at a fixed
// angle and lightly blurred.
func (c *Catalog) brandedWall(w, h int) (*image.NRGBA, error) {
	const op = "backgrounds.brandedWall"

	base := linearGradient(w, h, color.NRGBA{244, 244, 245, 255}, color.NRGBA{228, 228, 230, 255})

	overlay := image.NewNRGBA(image.Rect(0, 0, w, h))
	step := maxInt(140, minInt(w, h)/6)
	fontSize := math.Max(16, float64(step)/6)
	if err := brand.TileText(overlay, c.brandText, fontSize, step, color.NRGBA{20, 20, 22, 18}, false); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	rotated := imaging.Rotate(overlay, -18, color.NRGBA{})
	cropped := imaging.CropAnchor(rotated, w, h, imaging.Center)
	soft := imaging.Blur(cropped, 0.6)

	draw.Draw(base, base.Bounds(), soft, image.Point{}, draw.Over)
	return base, nil
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
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
