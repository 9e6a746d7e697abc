// Package storage holds the photo file store behind a narrow interface so
// record deletion and photo swaps stay independent of where bytes live.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrFileNotFound = errors.New("file not found")

type FileStore interface {
	// Store writes the file under name, overwriting any previous version.
	Store(ctx context.Context, name string, contents io.Reader) error
	// Delete removes the file; it reports false (never an error) when the
	// file was absent. Cleanup is best-effort by contract.
	Delete(ctx context.Context, name string) bool
	// Open returns the file contents for streaming; ErrFileNotFound when
	// absent. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) bool
}
