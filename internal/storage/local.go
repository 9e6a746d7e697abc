package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps uploaded photos in a directory on disk.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Store(ctx context.Context, name string, contents io.Reader) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.path(name))
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, contents); err != nil {
		return err
	}
	return f.Sync()
}

func (s *LocalStore) Delete(ctx context.Context, name string) bool {
	err := os.Remove(s.path(name))
	return err == nil
}

func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Exists(ctx context.Context, name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// path confines name to the upload directory. Stored names are generated
// server-side; Base strips any traversal in the serve-by-filename path.
func (s *LocalStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
