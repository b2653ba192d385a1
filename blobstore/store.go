// Package blobstore abstracts blob targets for store backup and restore.
//
// Implementations exist for the local file system, MinIO and Amazon S3.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blobstore: not found")

// Store is a named-blob target. Names may contain slashes; stores treat
// them as opaque keys.
type Store interface {
	// Put writes the blob under name, replacing any existing content.
	Put(ctx context.Context, name string, r io.Reader) error

	// Get opens the blob for reading. Missing blobs return ErrNotFound.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// List returns the names of all blobs starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
