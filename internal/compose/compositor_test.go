package compose

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mapcanvas/internal/cache"
	"mapcanvas/internal/projection"
	"mapcanvas/internal/tile"
	"mapcanvas/internal/view"
)

type drawCall struct {
	img image.Image
	src image.Rectangle
	dst image.Rectangle
	// region marks DrawImageRegion calls.
	region bool
}

type recordingSurface struct {
	pushes  int
	pops    int
	offsets [][2]float64
	calls   []drawCall
}

func (s *recordingSurface) PushTranslation(dx, dy float64) {
	s.pushes++
	s.offsets = append(s.offsets, [2]float64{dx, dy})
}

func (s *recordingSurface) Pop() {
	s.pops++
}

func (s *recordingSurface) DrawImage(img image.Image, dst image.Rectangle) {
	s.calls = append(s.calls, drawCall{img: img, dst: dst})
}

func (s *recordingSurface) DrawImageRegion(img image.Image, src, dst image.Rectangle) {
	s.calls = append(s.calls, drawCall{img: img, src: src, dst: dst, region: true})
}

type recordingRequester struct {
	mu   sync.Mutex
	keys map[tile.Key]int
}

func (r *recordingRequester) Request(ctx context.Context, key tile.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keys == nil {
		r.keys = map[tile.Key]int{}
	}
	r.keys[key]++
}

func newTable(t *testing.T) *cache.Table {
	t.Helper()
	tbl, err := cache.NewTable(1000, 256, 0, zap.NewNop())
	require.NoError(t, err)
	return tbl
}

func putReady(t *testing.T, tbl *cache.Table, key tile.Key) {
	t.Helper()
	require.True(t, tbl.Begin(key))
	require.NoError(t, tbl.Complete(key, &cache.Tile{Image: image.NewRGBA(image.Rect(0, 0, 256, 256))}))
}

// viewportOverTile builds a 200x200 viewport centered on the middle of the
// given tile. The odd size keeps the edges off tile boundaries, so the
// visible rectangle is exactly 3x3 with the one-tile margin.
func viewportOverTile(key tile.Key) view.Viewport {
	cx := (float64(key.Column) + 0.5) * projection.TileSize
	cy := (float64(key.Row) + 0.5) * projection.TileSize
	center := projection.TilePixelToGeo(cx, cy, float64(key.Zoom))
	return view.Viewport{
		Center: center,
		Zoom:   float64(key.Zoom),
		Width:  200,
		Height: 200,
	}
}

func TestRenderDrawsReadyTilesAligned(t *testing.T) {
	tbl := newTable(t)
	center := tile.Key{Zoom: 10, Column: 533, Row: 345}
	putReady(t, tbl, center)

	surface := &recordingSurface{}
	New(zap.NewNop()).Render(context.Background(), viewportOverTile(center), tbl, surface)

	require.Equal(t, 1, surface.pushes)
	require.Equal(t, 1, surface.pops)

	want := image.Rect(533*256, 345*256, 534*256, 346*256)
	var found bool
	for _, c := range surface.calls {
		if c.dst == want {
			require.False(t, c.region, "a ready tile is drawn whole, unscaled")
			found = true
		}
	}
	require.True(t, found, "center tile must be drawn at its world rectangle")
}

func TestRenderTranslationFromFractionalCenter(t *testing.T) {
	tbl := newTable(t)
	center := tile.Key{Zoom: 10, Column: 533, Row: 345}

	surface := &recordingSurface{}
	New(zap.NewNop()).Render(context.Background(), viewportOverTile(center), tbl, surface)

	require.Len(t, surface.offsets, 1)
	// Screen = world + (w/2 - cx, h/2 - cy).
	require.InDelta(t, 100-533.5*256, surface.offsets[0][0], 1e-6)
	require.InDelta(t, 100-345.5*256, surface.offsets[0][1], 1e-6)
}

func TestRenderAncestorFallbackCropAndStretch(t *testing.T) {
	tbl := newTable(t)
	center := tile.Key{Zoom: 10, Column: 533, Row: 345}
	// Only the zoom-2 ancestor is ready.
	putReady(t, tbl, center.Ancestor(2))

	surface := &recordingSurface{}
	New(zap.NewNop()).Render(context.Background(), viewportOverTile(center), tbl, surface)

	wantDst := image.Rect(533*256, 345*256, 534*256, 346*256)
	// scale=2: the sub-tile is 64px, and (533,345) sits at offset (1,1)
	// inside ancestor (133,86).
	wantSrc := image.Rect(64, 64, 128, 128)

	var found bool
	for _, c := range surface.calls {
		if c.dst == wantDst {
			require.True(t, c.region)
			require.Equal(t, wantSrc, c.src)
			found = true
		}
	}
	require.True(t, found)
}

func TestRenderNearestAncestorWins(t *testing.T) {
	tbl := newTable(t)
	center := tile.Key{Zoom: 10, Column: 533, Row: 345}
	putReady(t, tbl, center.Ancestor(1))
	putReady(t, tbl, center.Ancestor(3))

	surface := &recordingSurface{}
	New(zap.NewNop()).Render(context.Background(), viewportOverTile(center), tbl, surface)

	wantDst := image.Rect(533*256, 345*256, 534*256, 346*256)
	for _, c := range surface.calls {
		if c.dst == wantDst {
			// scale=1: 128px sub-tile at offset (1,1) in ancestor (266,172).
			require.Equal(t, image.Rect(128, 128, 256, 256), c.src)
			return
		}
	}
	t.Fatal("center cell was not drawn")
}

func TestRenderPlaceholderPolicy(t *testing.T) {
	center := tile.Key{Zoom: 10, Column: 533, Row: 345}

	t.Run("none draws nothing", func(t *testing.T) {
		surface := &recordingSurface{}
		New(zap.NewNop()).Render(context.Background(), viewportOverTile(center), newTable(t), surface)
		require.Empty(t, surface.calls)
	})

	t.Run("blank fills every cell", func(t *testing.T) {
		surface := &recordingSurface{}
		New(zap.NewNop(), WithPlaceholder(PlaceholderBlank)).
			Render(context.Background(), viewportOverTile(center), newTable(t), surface)
		// 3x3 visible cells, all blank.
		require.Len(t, surface.calls, 9)
		for _, c := range surface.calls {
			require.False(t, c.region)
		}
	})
}

func TestRenderReportsMissingTiles(t *testing.T) {
	tbl := newTable(t)
	center := tile.Key{Zoom: 10, Column: 533, Row: 345}
	putReady(t, tbl, center)

	req := &recordingRequester{}
	surface := &recordingSurface{}
	New(zap.NewNop(), WithRequester(req)).
		Render(context.Background(), viewportOverTile(center), tbl, surface)

	require.NotContains(t, req.keys, center, "ready tiles are not re-requested")
	require.Contains(t, req.keys, tile.Key{Zoom: 10, Column: 532, Row: 345})
	require.Contains(t, req.keys, tile.Key{Zoom: 10, Column: 534, Row: 346})
	require.Len(t, req.keys, 8, "the 3x3 rectangle minus the ready center")
}

func TestRenderSkipsInvalidRows(t *testing.T) {
	tbl := newTable(t)
	// Top-left corner of the world: rows above 0 do not exist, columns wrap.
	corner := tile.Key{Zoom: 3, Column: 0, Row: 0}

	req := &recordingRequester{}
	surface := &recordingSurface{}
	New(zap.NewNop(), WithRequester(req)).
		Render(context.Background(), viewportOverTile(corner), tbl, surface)

	for key := range req.keys {
		require.True(t, key.Valid(), "requested key %s", key)
		require.GreaterOrEqual(t, key.Row, 0)
	}
	require.Contains(t, req.keys, tile.Key{Zoom: 3, Column: 7, Row: 0},
		"column -1 wraps to the east edge")
}

func TestRenderWrapsAcrossAntimeridian(t *testing.T) {
	tbl := newTable(t)
	// The tile just west of the antimeridian is ready; a viewport centered
	// on the antimeridian must draw it at the unwrapped world rectangle.
	putReady(t, tbl, tile.Key{Zoom: 4, Column: 15, Row: 8})

	vp := view.Viewport{
		Center: projection.TilePixelToGeo(0, 8.5*256, 4),
		Zoom:   4,
		Width:  200,
		Height: 200,
	}

	surface := &recordingSurface{}
	New(zap.NewNop()).Render(context.Background(), vp, tbl, surface)

	var dsts []image.Rectangle
	for _, c := range surface.calls {
		dsts = append(dsts, c.dst)
	}
	require.Contains(t, dsts, image.Rect(-256, 8*256, 0, 9*256))
}
