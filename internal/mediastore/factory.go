package mediastore

import (
	"context"
	"fmt"

	"xsched/internal/config"
	"xsched/internal/xs"
)

// NewMediaStoreFromConfig creates a MediaStore implementation based on the media config type.
func NewMediaStoreFromConfig(ctx context.Context, cfg config.MediaConfig, keys S3Keys) (xs.MediaStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		store, err := NewS3Store(ctx, cfg, keys)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem media store requires root to be set")
		}
		store, err := NewFileSystemStore(cfg.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown media type: %s", cfg.Type)
	}
}
