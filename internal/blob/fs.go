package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSStore keeps artifacts under a local data directory. Keys may contain one
// directory level ("original/<id>_<name>", "cutout/<id>.png").
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	const op = "blob.NewFSStore"
	for _, dir := range []string{root, filepath.Join(root, "original"), filepath.Join(root, "cutout")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader) error {
	const op = "blob.FSStore.Put"
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	const op = "blob.FSStore.Open"
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return f, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	const op = "blob.FSStore.Delete"
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}
