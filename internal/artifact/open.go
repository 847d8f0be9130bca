package artifact

import (
	"context"

	"github.com/rotisserie/eris"
)

// Config selects and configures a blob store
type Config struct {
	Driver Driver   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// Open builds the store named by cfg.Driver (fs when empty)
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	}
	return nil, eris.Errorf("artifact: unknown blob driver %q", cfg.Driver)
}
