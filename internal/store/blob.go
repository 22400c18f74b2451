// Package store provides blob persistence for model bundles and SQLite
// persistence for training examples and response tables.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore defines persistence for named binary artifacts. Keys may contain
// slashes ("model/weights").
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
