// Package prefetch warms the tile cache around the viewport: the current
// zoom neighborhood plus the same neighborhood one zoom level in, so a
// zoom-in lands on tiles that are already loading.
package prefetch

import (
	"context"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mapcanvas/internal/projection"
	"mapcanvas/internal/tile"
)

// Requester accepts asynchronous tile load requests. The pipeline's pending
// guard de-duplicates, so submitting the same neighborhood every frame is
// idempotent.
type Requester interface {
	Request(ctx context.Context, key tile.Key)
}

// Doer loads one tile synchronously; it is the warmup-side contract.
type Doer interface {
	Do(ctx context.Context, key tile.Key) error
}

// Neighborhood enumerates the keys within radius of center on both axes at
// the center's zoom, plus the keys within the same radius of the doubled
// coordinates at zoom+1. Columns wrap, out-of-range rows are dropped, and
// wrap collisions at low zoom are de-duplicated.
func Neighborhood(center tile.Key, radius int) []tile.Key {
	seen := make(map[tile.Key]struct{})
	keys := make([]tile.Key, 0, 2*(2*radius+1)*(2*radius+1))

	add := func(c tile.Key) {
		for col := c.Column - radius; col <= c.Column+radius; col++ {
			for row := c.Row - radius; row <= c.Row+radius; row++ {
				k := tile.Key{Zoom: c.Zoom, Column: col, Row: row}.Normalized()
				if !k.Valid() {
					continue
				}
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}

	add(center)
	if center.Zoom < tile.MaxZoom {
		add(tile.Key{Zoom: center.Zoom + 1, Column: center.Column * 2, Row: center.Row * 2})
	}
	return keys
}

// Prefetcher submits warm-up neighborhoods to the load pipeline.
type Prefetcher struct {
	loader Requester
	radius int
	log    *zap.Logger
}

func New(loader Requester, radius int, log *zap.Logger) *Prefetcher {
	if radius < 0 {
		radius = 0
	}
	return &Prefetcher{
		loader: loader,
		radius: radius,
		log:    log,
	}
}

// Sweep enumerates the neighborhood of the viewport center at the given zoom
// and submits every key. Runs once per repaint.
func (p *Prefetcher) Sweep(ctx context.Context, center orb.Point, zoom float64) {
	z := clampZoom(int(zoom))
	cx, cy := projection.GeoToTilePixel(center, float64(z))
	centerKey := tile.Key{
		Zoom:   z,
		Column: int(cx) / projection.TileSize,
		Row:    int(cy) / projection.TileSize,
	}

	for _, key := range Neighborhood(centerKey, p.radius) {
		p.loader.Request(ctx, key)
	}
}

// Warm loads the given keys with bounded parallelism and blocks until all
// have settled. Individual tile failures are logged, not returned; only a
// canceled context aborts the sweep.
func Warm(ctx context.Context, loader Doer, keys []tile.Key, parallelism int, log *zap.Logger) error {
	if parallelism <= 0 {
		parallelism = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := loader.Do(ctx, key); err != nil {
				log.Debug("warmup tile failed", zap.Stringer("tile", key), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func clampZoom(z int) int {
	if z < tile.MinZoom {
		return tile.MinZoom
	}
	if z > tile.MaxZoom {
		return tile.MaxZoom
	}
	return z
}
