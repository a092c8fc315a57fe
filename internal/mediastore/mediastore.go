package mediastore

import (
	"context"
	"io"
)

// Store persists story media binaries (uploads and exported canvas
// rasters) and hands back a URL the overlays payload can reference.
type Store interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, objectName string) error
}
