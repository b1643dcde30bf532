package backgrounds

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
}

func TestCatalogBuiltins(t *testing.T) {
	t.Parallel()

	c := NewCatalog("", "aucto.ch")
	defs := c.List()
	require.Len(t, defs, 4)

	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"studio_neutral", "outdoor_lot", "branded_wall", "gradient_silver"}, ids)
}

func TestCatalogEmptyDirFallsBackToBuiltins(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), "aucto.ch")
	assert.Len(t, c.List(), 4)
}

func TestCatalogFilesReplaceBuiltins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "Showroom Floor.png"))
	writePNG(t, filepath.Join(dir, "sunset.png"))
	// Not an eligible extension.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	c := NewCatalog(dir, "aucto.ch")
	defs := c.List()
	require.Len(t, defs, 2)

	// File catalog fully replaces the built-ins, no union.
	assert.Equal(t, "showroom-floor", defs[0].ID)
	assert.Equal(t, "sunset", defs[1].ID)
	for _, d := range defs {
		assert.NotEqual(t, "gradient_silver", d.ID)
	}
}

func TestCatalogDuplicateStemsSuffixed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "lot.jpg"))
	writePNG(t, filepath.Join(dir, "lot.png"))

	c := NewCatalog(dir, "aucto.ch")
	defs := c.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "lot", defs[0].ID)
	assert.Equal(t, "lot-2", defs[1].ID)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"Showroom Floor", "showroom-floor"},
		{"IMG_2041 (edited)", "img-2041-edited"},
		{"---", "background"},
		{"Sunset", "sunset"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.input), "slugify(%q)", tt.input)
	}
}
