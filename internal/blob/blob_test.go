package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain name unchanged", input: "car-front.jpg", want: "car-front.jpg"},
		{name: "path separators stripped", input: "../../etc/passwd", want: ".._.._etc_passwd"},
		{name: "backslashes stripped", input: `C:\photos\car.png`, want: "C__photos_car.png"},
		{name: "unsafe runs collapsed", input: "my car (final)!.jpg", want: "my_car_final_.jpg"},
		{name: "empty falls back", input: "", want: "upload"},
		{name: "whitespace only falls back", input: "   ", want: "upload"},
		{name: "long name bounded", input: strings.Repeat("a", 200) + ".jpg", want: strings.Repeat("a", 120)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFilename(tt.input))
		})
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = store.Put(ctx, "original/abc_car.jpg", bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	rc, err := store.Open(ctx, "original/abc_car.jpg")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, store.Delete(ctx, "original/abc_car.jpg"))
	_, err = store.Open(ctx, "original/abc_car.jpg")
	assert.Error(t, err)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete(ctx, "original/missing"))
}
