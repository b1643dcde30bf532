// Package blob stores write-once artifacts (original uploads, cutout PNGs)
// addressed by generated keys.
package blob

import (
	"context"
	"io"
	"regexp"
	"strings"
)

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeFilename turns a client-supplied filename into something usable as a
// storage key suffix: no path separators, a restricted character set and a
// bounded length.
func SafeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > 120 {
		name = name[:120]
	}
	if name == "" {
		return "upload"
	}
	return name
}
