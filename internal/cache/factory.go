package cache

import (
	"fmt"

	"go.uber.org/zap"
)

// NewStore creates the persistent tier based on the configured mode.
func NewStore(mode, cacheDir string, log *zap.Logger) (Store, error) {
	switch mode {
	case "file":
		log.Info("Using file tile store", zap.String("cache_dir", cacheDir))
		return NewDiskStore(cacheDir)
	case "disabled":
		log.Info("Tile persistence disabled")
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown persistence mode: %s (supported: file, disabled)", mode)
	}
}
