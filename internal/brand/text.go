// Package brand renders the tiled brand text used by the watermark and the
// branded wall backdrop.
package brand

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce sync.Once
	fontVal  *truetype.Font
	fontErr  error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontVal, fontErr = freetype.ParseFont(goregular.TTF)
	})
	return fontVal, fontErr
}

// TileText stamps text on a grid covering dst, one tile every step pixels in
// both directions, starting one step outside the canvas so rotation leaves no
// bare corners. With echo set, a second pass is drawn at (+1,+1) with reduced
// opacity for readability on bright panels.
func TileText(dst *image.NRGBA, text string, fontSize float64, step int, fill color.NRGBA, echo bool) error {
	const op = "brand.TileText"

	f, err := loadFont()
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	if step < 1 {
		step = 1
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(fontSize)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)

	w := dst.Bounds().Dx()
	h := dst.Bounds().Dy()
	ascent := int(c.PointToFixed(fontSize) >> 6)

	echoFill := fill
	echoFill.A = uint8(float64(fill.A) * 0.65)

	for y := -step; y < h+step; y += step {
		for x := -step; x < w+step; x += step {
			c.SetSrc(image.NewUniform(fill))
			if _, err := c.DrawString(text, freetype.Pt(x, y+ascent)); err != nil {
				return fmt.Errorf("%s: %v", op, err)
			}
			if echo {
				c.SetSrc(image.NewUniform(echoFill))
				if _, err := c.DrawString(text, freetype.Pt(x+1, y+1+ascent)); err != nil {
					return fmt.Errorf("%s: %v", op, err)
				}
			}
		}
	}
	return nil
}
