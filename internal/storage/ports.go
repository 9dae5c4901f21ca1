// Package storage defines the object-storage sink used for raw disclosure
// bytes. The sink is write-once-per-key: keys are derived deterministically
// from file metadata so re-downloads are idempotent overwrites.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectMetadata carries optional attributes stored alongside an object.
type ObjectMetadata struct {
	ContentType   string
	ContentLength int64
	LastModified  time.Time
	ETag          string
}

// ObjectInfo describes one object in a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ObjectStorage is the write-once blob sink for raw file bytes.
type ObjectStorage interface {
	// Put stores an object under key, overwriting any previous content.
	Put(ctx context.Context, key string, reader io.Reader, metadata ObjectMetadata) error

	// Get retrieves an object's content. Returns ErrObjectNotFound when absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is present under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns objects under the given key prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// SinkKey derives the deterministic sink location for a remote file:
// {family}/{year}/{month}/{original-filename}. Keying off the file's own date
// rather than the wall clock makes re-downloads land on the same key.
func SinkKey(family string, fileDate time.Time, filename string) string {
	return fmt.Sprintf("%s/%04d/%02d/%s", family, fileDate.Year(), int(fileDate.Month()), filename)
}
