// Package pipeline orchestrates the load of one tile: disk lookup, network
// fetch, disk write-back, memory promotion. Requests are de-duplicated by the
// table's pending guard, capped by an in-flight semaphore, and always settle
// a key to Ready or Failed — errors never escape to the caller of Request.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	// Tile payloads arrive as png, jpeg or webp depending on the layer.
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/gen2brain/webp"
	"go.uber.org/zap"

	"mapcanvas/internal/cache"
	"mapcanvas/internal/tile"
)

// ErrDecode marks payloads that are present but not a decodable image.
var ErrDecode = errors.New("tile decode failure")

const defaultMaxInflight = 16

// TileFetcher is the network layer the pipeline drives.
type TileFetcher interface {
	Fetch(ctx context.Context, key tile.Key) ([]byte, error)
}

// Notify is called exactly once per accepted request with the key's terminal
// state. It runs on the loading goroutine; keep it cheap (set a dirty flag).
type Notify func(key tile.Key, state cache.State)

// Option configures a Loader.
type Option interface {
	Apply(l *Loader)
}

// OptionFunc adapts a function to the Option interface.
type OptionFunc func(l *Loader)

func (f OptionFunc) Apply(l *Loader) {
	f(l)
}

// WithMaxInflight caps the number of concurrent tile loads.
func WithMaxInflight(n int) Option {
	return OptionFunc(func(l *Loader) {
		if n > 0 {
			l.sem = make(chan struct{}, n)
		}
	})
}

// WithNotify registers the completion callback.
func WithNotify(fn Notify) Option {
	return OptionFunc(func(l *Loader) {
		l.notify = fn
	})
}

// Loader runs tile loads off the rendering path.
type Loader struct {
	table   *cache.Table
	store   cache.Store
	fetcher TileFetcher
	notify  Notify
	sem     chan struct{}
	wg      sync.WaitGroup
	log     *zap.Logger
}

func New(table *cache.Table, store cache.Store, fetcher TileFetcher, log *zap.Logger, opts ...Option) *Loader {
	l := &Loader{
		table:   table,
		store:   store,
		fetcher: fetcher,
		sem:     make(chan struct{}, defaultMaxInflight),
		log:     log,
	}
	for _, opt := range opts {
		opt.Apply(l)
	}
	return l
}

// Request schedules an asynchronous load for the key. Invalid keys and keys
// already pending, ready, or failed are dropped; repeated requests across
// frames are therefore cheap and idempotent.
func (l *Loader) Request(ctx context.Context, key tile.Key) {
	key = key.Normalized()
	if !key.Valid() {
		l.log.Debug("dropping invalid tile request", zap.Stringer("tile", key))
		return
	}
	if !l.table.Begin(key) {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.sem <- struct{}{}
		defer func() { <-l.sem }()
		l.load(ctx, key)
	}()
}

// Do loads the key synchronously. It is the warmup entry point; the render
// path uses Request. A key that is already settled or in flight is a no-op.
func (l *Loader) Do(ctx context.Context, key tile.Key) error {
	key = key.Normalized()
	if !key.Valid() {
		return fmt.Errorf("invalid tile key %s", key)
	}
	if !l.table.Begin(key) {
		return nil
	}
	return l.load(ctx, key)
}

// Wait blocks until every scheduled load has settled.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// load finishes a key the table has already marked pending. It announces the
// terminal state exactly once.
func (l *Loader) load(ctx context.Context, key tile.Key) error {
	state, err := l.run(ctx, key)
	if l.notify != nil {
		l.notify(key, state)
	}
	return err
}

func (l *Loader) run(ctx context.Context, key tile.Key) (cache.State, error) {
	if data, ok := l.store.Get(key); ok {
		img, err := decode(data)
		if err == nil {
			if err := l.table.Complete(key, &cache.Tile{Image: img, Data: data}); err != nil {
				return cache.StateFailed, err
			}
			return cache.StateReady, nil
		}
		// A corrupt disk entry is not fatal; refetch from the network.
		l.log.Warn("corrupt cached tile, refetching", zap.Stringer("tile", key), zap.Error(err))
	}

	data, err := l.fetcher.Fetch(ctx, key)
	if err != nil {
		l.table.Fail(key, err)
		return cache.StateFailed, err
	}

	img, err := decode(data)
	if err != nil {
		// Nothing is written to disk for an undecodable payload.
		l.table.Fail(key, err)
		return cache.StateFailed, err
	}

	if err := l.store.Put(key, data); err != nil {
		l.table.Fail(key, err)
		return cache.StateFailed, err
	}

	if err := l.table.Complete(key, &cache.Tile{Image: img, Data: data}); err != nil {
		return cache.StateFailed, err
	}
	return cache.StateReady, nil
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}
