package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mapcanvas/internal/tile"
)

// DiskStore persists encoded tiles, one file per key.
// Layout: {cacheDir}/{zoom}/{column}/{row}.png
type DiskStore struct {
	cacheDir string
}

func NewDiskStore(cacheDir string) (*DiskStore, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &DiskStore{
		cacheDir: cacheDir,
	}, nil
}

// buildFilePath builds the file path for a tile key.
func (c *DiskStore) buildFilePath(key tile.Key) string {
	dir := filepath.Join(c.cacheDir, strconv.Itoa(key.Zoom), strconv.Itoa(key.Column))
	return filepath.Join(dir, strconv.Itoa(key.Row)+".png")
}

func (c *DiskStore) Get(key tile.Key) ([]byte, bool) {
	data, err := os.ReadFile(c.buildFilePath(key))
	if err != nil {
		return nil, false
	}

	return data, true
}

func (c *DiskStore) Put(key tile.Key, data []byte) error {
	filePath := c.buildFilePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create tile directory: %w", err)
	}

	// Write atomically so a crashed write never leaves a truncated tile
	// behind as a false ready signal.
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tile: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit tile: %w", err)
	}
	return nil
}

func (c *DiskStore) Clear() {
	if err := os.RemoveAll(c.cacheDir); err != nil {
		return
	}

	os.MkdirAll(c.cacheDir, 0755)
}
