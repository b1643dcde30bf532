package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carstage/internal/models"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// cutoutWithBlock is transparent except for an opaque block.
func cutoutWithBlock(w, h int, block image.Rectangle, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, block, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func sumRed(img *image.NRGBA) int64 {
	var sum int64
	for i := 0; i < len(img.Pix); i += 4 {
		sum += int64(img.Pix[i])
	}
	return sum
}

var noTransform = models.RenderParams{Scale: 1, SnapCenter: true}

func TestCompositeCanvasIsCutoutSize(t *testing.T) {
	t.Parallel()

	cutout := solid(200, 100, color.NRGBA{200, 0, 0, 255})
	bg := solid(300, 300, color.NRGBA{0, 200, 0, 255})

	out := Composite(cutout, bg, noTransform, true, "aucto.ch")
	// The canvas is always the cutout's native size; the 300x300 background
	// gets resized to match.
	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
	assert.Equal(t, color.NRGBA{200, 0, 0, 255}, out.NRGBAAt(100, 50))
}

func TestCompositeSnapCentersSubject(t *testing.T) {
	t.Parallel()

	cutout := solid(200, 100, color.NRGBA{200, 0, 0, 255})
	bg := solid(200, 100, color.NRGBA{0, 200, 0, 255})

	params := models.RenderParams{Scale: 0.5, SnapCenter: true, OffsetX: 999, OffsetY: 999}
	out := Composite(cutout, bg, params, true, "aucto.ch")

	// Scaled subject is 100x50, so its top-left lands at (50, 25).
	assert.Equal(t, uint8(200), out.NRGBAAt(100, 50).R)
	assert.EqualValues(t, 0, out.NRGBAAt(100, 50).G)
	// Outside the subject the background shows through.
	assert.Equal(t, color.NRGBA{0, 200, 0, 255}, out.NRGBAAt(10, 10))
	assert.Equal(t, color.NRGBA{0, 200, 0, 255}, out.NRGBAAt(190, 90))
	// Snap forces the offsets to zero: left and right margins match.
	assert.Equal(t, out.NRGBAAt(49, 50).G, out.NRGBAAt(151, 50).G)
}

func TestCompositeOffsetsMoveSubject(t *testing.T) {
	t.Parallel()

	cutout := cutoutWithBlock(100, 100, image.Rect(40, 40, 60, 60), color.NRGBA{200, 0, 0, 255})
	bg := solid(100, 100, color.NRGBA{0, 200, 0, 255})

	params := models.RenderParams{Scale: 1, OffsetX: 20, OffsetY: 0}
	out := Composite(cutout, bg, params, true, "aucto.ch")

	assert.Equal(t, uint8(200), out.NRGBAAt(70, 50).R)
	assert.Equal(t, uint8(0), out.NRGBAAt(45, 50).R)
}

func TestCompositeScaleClamped(t *testing.T) {
	t.Parallel()

	cutout := cutoutWithBlock(80, 80, image.Rect(20, 20, 60, 60), color.NRGBA{120, 30, 30, 255})
	bg := solid(80, 80, color.NRGBA{240, 240, 240, 255})

	up := Composite(cutout, bg, models.RenderParams{Scale: 5.0, SnapCenter: true}, true, "x")
	max := Composite(cutout, bg, models.RenderParams{Scale: 2.0, SnapCenter: true}, true, "x")
	assert.Equal(t, max.Pix, up.Pix)

	down := Composite(cutout, bg, models.RenderParams{Scale: 0.01, SnapCenter: true}, true, "x")
	min := Composite(cutout, bg, models.RenderParams{Scale: 0.5, SnapCenter: true}, true, "x")
	assert.Equal(t, min.Pix, down.Pix)
}

func TestWatermarkOnlyOnSubject(t *testing.T) {
	t.Parallel()

	// Left half opaque, right half transparent.
	cutout := cutoutWithBlock(300, 300, image.Rect(0, 0, 150, 300), color.NRGBA{180, 180, 180, 255})
	bg := solid(300, 300, color.NRGBA{255, 255, 255, 255})

	paid := Composite(cutout, bg, noTransform, true, "aucto.ch")
	free := Composite(cutout, bg, noTransform, false, "aucto.ch")

	// Over transparent regions both outputs are exactly the background.
	for _, pt := range []image.Point{{200, 10}, {290, 150}, {160, 299}} {
		assert.Equal(t, paid.NRGBAAt(pt.X, pt.Y), free.NRGBAAt(pt.X, pt.Y), "pt=%v", pt)
		assert.Equal(t, color.NRGBA{255, 255, 255, 255}, free.NRGBAAt(pt.X, pt.Y), "pt=%v", pt)
	}

	// The subject region carries watermark ink somewhere.
	var diff int
	for y := 0; y < 300; y++ {
		for x := 0; x < 150; x++ {
			if paid.NRGBAAt(x, y) != free.NRGBAAt(x, y) {
				diff++
			}
		}
	}
	assert.Positive(t, diff, "watermark should alter subject pixels for free users")
}

func TestPaidOutputHasNoWatermark(t *testing.T) {
	t.Parallel()

	cutout := solid(120, 120, color.NRGBA{90, 90, 90, 255})
	bg := solid(120, 120, color.NRGBA{10, 10, 10, 255})

	a := Composite(cutout, bg, noTransform, true, "aucto.ch")
	b := Composite(cutout, bg, noTransform, true, "different-text")
	// Watermark text must not influence the paid path at all.
	assert.Equal(t, a.Pix, b.Pix)
}

func TestShadowDarkensBackground(t *testing.T) {
	t.Parallel()

	cutout := cutoutWithBlock(100, 100, image.Rect(20, 10, 80, 50), color.NRGBA{50, 50, 50, 255})
	bg := solid(100, 100, color.NRGBA{250, 250, 250, 255})

	with := Composite(cutout, bg, models.RenderParams{Scale: 1, SnapCenter: true, Shadow: true}, true, "x")
	without := Composite(cutout, bg, models.RenderParams{Scale: 1, SnapCenter: true, Shadow: false}, true, "x")

	assert.Less(t, sumRed(with), sumRed(without))
}

func TestShadowSkippedForEmptyAlpha(t *testing.T) {
	t.Parallel()

	cutout := image.NewNRGBA(image.Rect(0, 0, 50, 50)) // fully transparent
	bg := solid(50, 50, color.NRGBA{200, 200, 200, 255})

	out := Composite(cutout, bg, models.RenderParams{Scale: 1, Shadow: true}, true, "x")
	assert.Equal(t, color.NRGBA{200, 200, 200, 255}, out.NRGBAAt(25, 40))
}

func TestRotationExpandsWithoutClipping(t *testing.T) {
	t.Parallel()

	cutout := cutoutWithBlock(100, 60, image.Rect(10, 10, 90, 50), color.NRGBA{200, 0, 0, 255})
	bg := solid(100, 60, color.NRGBA{0, 0, 200, 255})

	out := Composite(cutout, bg, models.RenderParams{Scale: 1, RotateDeg: 45, SnapCenter: true}, true, "x")
	// Canvas stays at the cutout's native size even though the rotated
	// subject layer is larger.
	require.Equal(t, 100, out.Bounds().Dx())
	require.Equal(t, 60, out.Bounds().Dy())
	// Center still shows the subject.
	assert.Equal(t, uint8(200), out.NRGBAAt(50, 30).R)
}

func TestAlphaBBox(t *testing.T) {
	t.Parallel()

	img := cutoutWithBlock(40, 40, image.Rect(5, 7, 20, 30), color.NRGBA{1, 2, 3, 255})
	bbox, ok := alphaBBox(img)
	require.True(t, ok)
	assert.Equal(t, image.Rect(5, 7, 20, 30), bbox)

	_, ok = alphaBBox(image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	assert.False(t, ok)
}
