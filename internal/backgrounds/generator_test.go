package backgrounds

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestGenerateExactSize(t *testing.T) {
	t.Parallel()

	c := NewCatalog("", "aucto.ch")
	sizes := [][2]int{{900, 560}, {64, 64}, {1, 1}, {3, 500}}
	for _, d := range c.List() {
		for _, sz := range sizes {
			img, err := c.Generate(d.ID, sz[0], sz[1])
			require.NoError(t, err, "id=%s size=%v", d.ID, sz)
			assert.Equal(t, sz[0], img.Bounds().Dx())
			assert.Equal(t, sz[1], img.Bounds().Dy())
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	c := NewCatalog("", "aucto.ch")
	for _, d := range c.List() {
		a, err := c.Generate(d.ID, 120, 80)
		require.NoError(t, err)
		b, err := c.Generate(d.ID, 120, 80)
		require.NoError(t, err)
		assert.Equal(t, encodePNG(t, a), encodePNG(t, b), "id=%s", d.ID)
	}
}

func TestGenerateUnknownBackground(t *testing.T) {
	t.Parallel()

	c := NewCatalog("", "aucto.ch")
	_, err := c.Generate("nope", 100, 100)
	assert.ErrorIs(t, err, ErrUnknownBackground)
}

func TestGenerateInvalidSize(t *testing.T) {
	t.Parallel()

	c := NewCatalog("", "aucto.ch")
	for _, sz := range [][2]int{{0, 100}, {100, 0}, {-1, 100}, {100, -5}, {0, 0}} {
		// Size is rejected before the id is even looked at.
		_, err := c.Generate("gradient_silver", sz[0], sz[1])
		assert.ErrorIs(t, err, ErrInvalidSize, "size=%v", sz)
		_, err = c.Generate("nope", sz[0], sz[1])
		assert.ErrorIs(t, err, ErrInvalidSize, "size=%v", sz)
	}
}

func TestGradientSilverEndpoints(t *testing.T) {
	t.Parallel()

	c := NewCatalog("", "aucto.ch")
	img, err := c.Generate("gradient_silver", 10, 50)
	require.NoError(t, err)

	nrgba, ok := img.(*image.NRGBA)
	require.True(t, ok)
	top := nrgba.NRGBAAt(5, 0)
	bottom := nrgba.NRGBAAt(5, 49)
	assert.EqualValues(t, 250, top.R)
	assert.EqualValues(t, 252, top.B)
	assert.EqualValues(t, 196, bottom.R)
	assert.EqualValues(t, 202, bottom.B)
}

func TestGenerateFileBackedCover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	f := filepath.Join(dir, "lot.png")
	require.NoError(t, os.WriteFile(f, encodePNG(t, src), 0o644))

	c := NewCatalog(dir, "aucto.ch")
	img, err := c.Generate("lot", 100, 100)
	require.NoError(t, err)
	// Cover semantics: exact target size, no letterboxing.
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	// Ids from the file catalog are the only ones accepted.
	_, err = c.Generate("gradient_silver", 100, 100)
	assert.ErrorIs(t, err, ErrUnknownBackground)
}
