// Package remote provides access to the disclosure file server: read-only
// listing and whole-file transfer over SFTP. The server is reachable only
// from an allow-listed egress point and authenticates with a static
// username/password pair rotated out-of-band.
package remote

import (
	"context"
	"io"
	"time"
)

// FileInfo describes one file observed on the remote server.
type FileInfo struct {
	Path       string
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// Client is the connection to the remote file server. A single connection is
// established per invocation and reused across the batch; Reconnect replaces
// a broken connection.
type Client interface {
	// List walks the remote directory tree and returns every regular file,
	// up to the configured depth.
	List(ctx context.Context, dir string) ([]FileInfo, error)

	// Fetch streams the remote file into w and returns the byte count.
	Fetch(ctx context.Context, remotePath string, w io.Writer) (int64, error)

	// Stat returns metadata for a single remote path.
	Stat(ctx context.Context, remotePath string) (FileInfo, error)

	// Reconnect tears down and re-establishes the connection.
	Reconnect() error

	// Close releases the connection.
	Close() error
}
