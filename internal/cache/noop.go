package cache

import "mapcanvas/internal/tile"

// NoopStore disables persistence: every lookup misses and writes vanish.
type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (c *NoopStore) Get(key tile.Key) ([]byte, bool) {
	return nil, false
}

func (c *NoopStore) Put(key tile.Key, data []byte) error {
	return nil
}

func (c *NoopStore) Clear() {
}
