package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"mapcanvas/internal/tile"
)

// ErrTileSize is returned when a decoded tile does not have the fixed
// tile-size dimensions.
var ErrTileSize = errors.New("tile image has wrong dimensions")

type failure struct {
	err error
	at  time.Time
}

// Table is the in-memory tile table: the single source of truth for what the
// compositor may draw. Ready payloads live in an LRU cache with a configured
// capacity; an evicted key simply becomes absent again. Failed keys live in a
// TTL cache so that a failure can expire and reopen the key for another
// attempt (a TTL of zero keeps failures for the whole session).
type Table struct {
	mu       sync.Mutex
	tileSize int
	ready    *lru.Cache[tile.Key, *Tile]
	pending  map[tile.Key]struct{}
	failed   *ttlcache.Cache[tile.Key, failure]
	log      *zap.Logger
}

// NewTable creates a table holding at most capacity ready tiles.
func NewTable(capacity, tileSize int, failedTTL time.Duration, log *zap.Logger) (*Table, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("table capacity must be positive, got %d", capacity)
	}
	ready, err := lru.New[tile.Key, *Tile](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile LRU: %w", err)
	}

	ttl := ttlcache.NoTTL
	if failedTTL > 0 {
		ttl = failedTTL
	}
	failed := ttlcache.New[tile.Key, failure](
		ttlcache.WithTTL[tile.Key, failure](ttl),
		ttlcache.WithDisableTouchOnHit[tile.Key, failure](),
	)

	return &Table{
		tileSize: tileSize,
		ready:    ready,
		pending:  make(map[tile.Key]struct{}),
		failed:   failed,
		log:      log,
	}, nil
}

// Begin attempts the Absent -> Pending transition. It returns false when the
// key is already pending, ready, or failed inside its retry window; callers
// must not start any I/O for the key in that case. This is the per-key fetch
// de-duplication guard.
func (t *Table) Begin(key tile.Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[key]; ok {
		return false
	}
	if t.ready.Contains(key) {
		return false
	}
	if t.failed.Get(key) != nil {
		return false
	}

	t.pending[key] = struct{}{}
	return true
}

// Complete transitions a pending key to Ready. The decoded image must be
// exactly tileSize x tileSize; anything else is a decode failure and the key
// is marked Failed instead.
func (t *Table) Complete(key tile.Key, tl *Tile) error {
	b := tl.Image.Bounds()
	if b.Dx() != t.tileSize || b.Dy() != t.tileSize {
		err := fmt.Errorf("%w: got %dx%d, want %dx%d", ErrTileSize, b.Dx(), b.Dy(), t.tileSize, t.tileSize)
		t.Fail(key, err)
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
	t.failed.Delete(key)
	t.ready.Add(key, tl)
	return nil
}

// Fail transitions a pending key to Failed with the given reason.
func (t *Table) Fail(key tile.Key, reason error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
	t.failed.Set(key, failure{err: reason, at: time.Now()}, ttlcache.DefaultTTL)
	t.log.Debug("tile failed", zap.Stringer("tile", key), zap.Error(reason))
}

// Lookup returns a snapshot of the key's entry. The lock is held only for
// the duration of the call; the compositor reads one key at a time and never
// locks the table across a repaint.
func (t *Table) Lookup(key tile.Key) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tl, ok := t.ready.Get(key); ok {
		return Entry{State: StateReady, Tile: tl}
	}
	if _, ok := t.pending[key]; ok {
		return Entry{State: StatePending}
	}
	if item := t.failed.Get(key); item != nil {
		f := item.Value()
		return Entry{State: StateFailed, Err: f.err, FailedAt: f.at}
	}
	return Entry{State: StateAbsent}
}

// Len returns the number of ready tiles currently held.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready.Len()
}
