// Package view owns the viewport: pan and zoom gestures mutate it here, and
// the compositor and prefetcher read it. Zoom is cursor-anchored, not
// center-anchored: the geographic point under the pointer stays put across a
// wheel step.
package view

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"mapcanvas/internal/projection"
)

// Viewport zoom range. The lower bound is above the tile pyramid's minimum
// so the ancestor fallback always has somewhere to go.
const (
	ZoomMin = 2.0
	ZoomMax = 18.0
)

// Viewport is the visible window onto the map. Zoom is fractional during
// interaction; tile selection floors it.
type Viewport struct {
	Center orb.Point
	Zoom   float64
	Width  int
	Height int
}

// Controller translates pointer input into viewport state. It has two
// interaction states, idle and panning, entered and left by pointer
// down/up; wheel zoom is a stateless transition.
type Controller struct {
	mu      sync.Mutex
	vp      Viewport
	panning bool
	lastX   float64
	lastY   float64
	onDirty func()
	log     *zap.Logger
}

// NewController creates a controller over the given initial viewport.
// onDirty is invoked (with no lock held pending) after every state mutation;
// wire it to the redraw scheduler.
func NewController(vp Viewport, onDirty func(), log *zap.Logger) *Controller {
	vp.Zoom = clampZoom(vp.Zoom)
	vp.Center = orb.Point{projection.WrapLon(vp.Center.Lon()), projection.ClampLat(vp.Center.Lat())}
	return &Controller{
		vp:      vp,
		onDirty: onDirty,
		log:     log,
	}
}

// Viewport returns a snapshot of the current viewport.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp
}

// Resize updates the viewport pixel size.
func (c *Controller) Resize(width, height int) {
	c.mu.Lock()
	c.vp.Width = width
	c.vp.Height = height
	c.mu.Unlock()
	c.markDirty()
}

// Panning reports whether a drag is in progress.
func (c *Controller) Panning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panning
}

// PointerDown enters the panning state and records the press position.
func (c *Controller) PointerDown(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panning = true
	c.lastX, c.lastY = x, y
}

// PointerMove pans the center by the drag delta since the last event.
// Ignored while idle.
func (c *Controller) PointerMove(x, y float64) {
	c.mu.Lock()
	if !c.panning {
		c.mu.Unlock()
		return
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	c.vp.Center = projection.Pan(c.vp.Center, dx, dy, c.vp.Zoom)
	c.mu.Unlock()
	c.markDirty()
}

// PointerUp leaves the panning state.
func (c *Controller) PointerUp(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panning = false
}

// Wheel performs one cursor-anchored zoom step. The current zoom snaps to
// its integer floor, the geographic point under the cursor at that zoom is
// fixed, the zoom moves exactly one level, and the center is re-solved so
// the same point projects under the cursor again.
func (c *Controller) Wheel(delta, x, y float64) {
	if delta == 0 {
		return
	}

	c.mu.Lock()
	z0 := clampZoom(math.Floor(c.vp.Zoom))
	anchor := projection.ScreenToGeo(c.vp.Center, z0, c.vp.Width, c.vp.Height, x, y)

	z1 := z0 + 1
	if delta < 0 {
		z1 = z0 - 1
	}
	z1 = clampZoom(z1)
	if z1 == z0 && c.vp.Zoom == z0 {
		c.mu.Unlock()
		return
	}

	c.vp.Zoom = z1
	c.vp.Center = projection.CenterForAnchor(anchor, z1, c.vp.Width, c.vp.Height, x, y)
	c.mu.Unlock()
	c.markDirty()
}

func (c *Controller) markDirty() {
	if c.onDirty != nil {
		c.onDirty()
	}
}

func clampZoom(z float64) float64 {
	return math.Max(ZoomMin, math.Min(ZoomMax, z))
}
