// Package compose turns the viewport and the current cache contents into
// draw calls. Tiles that have not arrived are substituted by the nearest
// ready ancestor, cropped and stretched, which keeps the view visually
// continuous while fetches are in flight.
package compose

import (
	"context"
	"image"
	"image/color"
	"math"

	"go.uber.org/zap"

	"mapcanvas/internal/cache"
	"mapcanvas/internal/projection"
	"mapcanvas/internal/tile"
	"mapcanvas/internal/view"
)

// PlaceholderPolicy decides what to draw for a cell with no ready tile and
// no ready ancestor.
type PlaceholderPolicy int

const (
	// PlaceholderNone leaves the cell empty.
	PlaceholderNone PlaceholderPolicy = iota
	// PlaceholderBlank fills the cell with a flat neutral tile.
	PlaceholderBlank
)

// minFallbackZoom is the coarsest level the ancestor search descends to,
// matching the lower bound of the viewport zoom range.
const minFallbackZoom = 2

// Requester receives the keys of cells that were not ready, so the pipeline
// can start loading them.
type Requester interface {
	Request(ctx context.Context, key tile.Key)
}

// Option configures a Compositor.
type Option func(c *Compositor)

// WithPlaceholder sets the policy for cells with no drawable content.
func WithPlaceholder(p PlaceholderPolicy) Option {
	return func(c *Compositor) {
		c.placeholder = p
	}
}

// WithRequester wires missing-tile reporting to the load pipeline.
func WithRequester(r Requester) Option {
	return func(c *Compositor) {
		c.requester = r
	}
}

// Compositor is stateless across frames: every Render re-derives the visible
// tile rectangle from the viewport and reads per-key snapshots of the table.
type Compositor struct {
	placeholder PlaceholderPolicy
	requester   Requester
	blank       *image.RGBA
	log         *zap.Logger
}

func New(log *zap.Logger, opts ...Option) *Compositor {
	c := &Compositor{
		blank: blankTile(),
		log:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render composites one frame of the viewport onto the surface. It never
// blocks on I/O and never fails; missing tiles degrade to ancestors or the
// placeholder policy.
func (c *Compositor) Render(ctx context.Context, vp view.Viewport, table *cache.Table, s Surface) {
	z := clampZoom(int(math.Floor(vp.Zoom)))
	cx, cy := projection.GeoToTilePixel(vp.Center, float64(z))
	w, h := float64(vp.Width), float64(vp.Height)

	// One translation per repaint keeps every tile rectangle aligned to
	// world space regardless of the fractional pan offset.
	s.PushTranslation(w/2-cx, h/2-cy)
	defer s.Pop()

	// Visible index rectangle plus a one-tile margin on each side, so
	// partial-pixel offsets never expose an edge gap.
	minCol := int(math.Floor((cx-w/2)/projection.TileSize)) - 1
	maxCol := int(math.Floor((cx+w/2)/projection.TileSize)) + 1
	minRow := int(math.Floor((cy-h/2)/projection.TileSize)) - 1
	maxRow := int(math.Floor((cy+h/2)/projection.TileSize)) + 1

	for col := minCol; col <= maxCol; col++ {
		for row := minRow; row <= maxRow; row++ {
			key := tile.Key{Zoom: z, Column: col, Row: row}.Normalized()
			if !key.Valid() {
				continue
			}

			// World-space rectangle uses the unwrapped column so a
			// viewport straddling the antimeridian draws both copies.
			dst := image.Rect(
				col*projection.TileSize,
				row*projection.TileSize,
				(col+1)*projection.TileSize,
				(row+1)*projection.TileSize,
			)

			entry := table.Lookup(key)
			if entry.State == cache.StateReady {
				s.DrawImage(entry.Tile.Image, dst)
				continue
			}

			if c.requester != nil {
				c.requester.Request(ctx, key)
			}
			if !c.drawAncestor(key, dst, table, s) && c.placeholder == PlaceholderBlank {
				s.DrawImage(c.blank, dst)
			}
		}
	}
}

// drawAncestor walks up the pyramid and draws the first ready ancestor,
// cropped to the sub-region covering key and stretched to dst. The nearest
// ancestor wins.
func (c *Compositor) drawAncestor(key tile.Key, dst image.Rectangle, table *cache.Table, s Surface) bool {
	for scale := 1; key.Zoom-scale >= minFallbackZoom; scale++ {
		sub := projection.TileSize >> uint(scale)
		if sub < 1 {
			break
		}

		ancestor := key.Ancestor(scale)
		entry := table.Lookup(ancestor)
		if entry.State != cache.StateReady {
			continue
		}

		offCol := key.Column - ancestor.Column<<uint(scale)
		offRow := key.Row - ancestor.Row<<uint(scale)
		src := image.Rect(offCol*sub, offRow*sub, (offCol+1)*sub, (offRow+1)*sub)
		s.DrawImageRegion(entry.Tile.Image, src, dst)
		return true
	}
	return false
}

func blankTile() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, projection.TileSize, projection.TileSize))
	grey := color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = grey.R
		img.Pix[i+1] = grey.G
		img.Pix[i+2] = grey.B
		img.Pix[i+3] = grey.A
	}
	return img
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
