package cache

import "mapcanvas/internal/tile"

// Store is the persistent tier. Presence of a key is itself the ready
// signal; there is no separate index.
type Store interface {
	Get(key tile.Key) ([]byte, bool)
	Put(key tile.Key, data []byte) error
	Clear()
}
