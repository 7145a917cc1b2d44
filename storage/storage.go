package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"vidstream/config"
)

// Info describes a stored object, enough for range-capable serving.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Store is the permanent-storage backend for processed artifacts and
// thumbnails. Open returns a seekable reader so the streaming gate can
// honor range requests.
type Store interface {
	Save(ctx context.Context, key, localPath string) error
	Open(ctx context.Context, key string) (io.ReadSeekCloser, Info, error)
	Remove(ctx context.Context, key string) error
}

// New selects the backend from configuration.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocalStore(cfg.Storage.LocalDir)
	case "minio":
		if cfg.Minio == nil {
			return nil, fmt.Errorf("storage driver minio requires a configured client")
		}
		return NewMinioStore(cfg.Minio, cfg.Storage.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
