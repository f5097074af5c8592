package storage

import (
	"context"
	"io"
)

// ObjectInfo describes one remote object under the configured prefix.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the slice of an S3-compatible bucket the application
// needs: listing the result exports, pulling them down, and pushing an
// exported entrylist back up.
type ObjectStore interface {
	ListObjects(ctx context.Context) ([]ObjectInfo, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) error
}
