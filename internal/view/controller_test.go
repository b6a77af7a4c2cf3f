package view

import (
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mapcanvas/internal/projection"
)

func newTestController(vp Viewport) (*Controller, *atomic.Int64) {
	var dirt atomic.Int64
	c := NewController(vp, func() { dirt.Add(1) }, zap.NewNop())
	return c, &dirt
}

func TestControllerPanStateMachine(t *testing.T) {
	c, dirt := newTestController(Viewport{Center: orb.Point{0, 0}, Zoom: 5, Width: 800, Height: 600})

	// Moves while idle are ignored.
	c.PointerMove(50, 50)
	require.False(t, c.Panning())
	require.EqualValues(t, 0, dirt.Load())
	require.Equal(t, orb.Point{0, 0}, c.Viewport().Center)

	c.PointerDown(100, 100)
	require.True(t, c.Panning())

	c.PointerMove(150, 100)
	require.Greater(t, dirt.Load(), int64(0))
	require.NotEqual(t, 0.0, c.Viewport().Center.Lon())

	c.PointerUp(150, 100)
	require.False(t, c.Panning())

	after := c.Viewport().Center
	c.PointerMove(300, 300)
	require.Equal(t, after, c.Viewport().Center, "moves after release are ignored")
}

func TestControllerPanNumericRegression(t *testing.T) {
	c, _ := newTestController(Viewport{Center: orb.Point{0, 0}, Zoom: 3, Width: 800, Height: 600})

	c.PointerDown(0, 0)
	c.PointerMove(100, 0)
	c.PointerUp(100, 0)

	want := -100 * 360.0 / (8 * 256)
	require.InDelta(t, want, c.Viewport().Center.Lon(), 1e-9)
	require.InDelta(t, 0, c.Viewport().Center.Lat(), 1e-9)
}

func TestControllerWheelAnchorsCursor(t *testing.T) {
	cases := []struct {
		name  string
		vp    Viewport
		delta float64
		x, y  float64
	}{
		{"zoom in off-center", Viewport{Center: orb.Point{-73.98, 40.75}, Zoom: 10, Width: 1024, Height: 768}, 1, 200, 650},
		{"zoom out off-center", Viewport{Center: orb.Point{116.39, 39.9}, Zoom: 12, Width: 800, Height: 600}, -1, 700, 100},
		{"zoom in at corner", Viewport{Center: orb.Point{2.35, 48.85}, Zoom: 6, Width: 640, Height: 480}, 1, 0, 0},
		{"fractional start zoom", Viewport{Center: orb.Point{10, 50}, Zoom: 7.6, Width: 800, Height: 600}, 1, 420, 180},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestController(tc.vp)

			beforeVP := c.Viewport()
			z0 := beforeVP.Zoom
			if z0 != float64(int(z0)) {
				z0 = float64(int(z0))
			}
			before := projection.ScreenToGeo(beforeVP.Center, z0, beforeVP.Width, beforeVP.Height, tc.x, tc.y)

			c.Wheel(tc.delta, tc.x, tc.y)

			afterVP := c.Viewport()
			after := projection.ScreenToGeo(afterVP.Center, afterVP.Zoom, afterVP.Width, afterVP.Height, tc.x, tc.y)

			require.InDelta(t, before.Lon(), after.Lon(), 1e-9)
			require.InDelta(t, before.Lat(), after.Lat(), 1e-9)
		})
	}
}

func TestControllerWheelStepsOneIntegerLevel(t *testing.T) {
	c, _ := newTestController(Viewport{Center: orb.Point{0, 0}, Zoom: 7.6, Width: 800, Height: 600})

	c.Wheel(1, 400, 300)
	require.Equal(t, 8.0, c.Viewport().Zoom, "snap to floor, then one level in")

	c.Wheel(-1, 400, 300)
	require.Equal(t, 7.0, c.Viewport().Zoom)
}

func TestControllerWheelClampsZoom(t *testing.T) {
	c, _ := newTestController(Viewport{Center: orb.Point{0, 0}, Zoom: ZoomMax, Width: 800, Height: 600})
	c.Wheel(1, 400, 300)
	require.Equal(t, ZoomMax, c.Viewport().Zoom)

	c2, _ := newTestController(Viewport{Center: orb.Point{0, 0}, Zoom: ZoomMin, Width: 800, Height: 600})
	c2.Wheel(-1, 400, 300)
	require.Equal(t, ZoomMin, c2.Viewport().Zoom)
}

func TestNewControllerNormalizesInput(t *testing.T) {
	c, _ := newTestController(Viewport{Center: orb.Point{200, 89}, Zoom: 25, Width: 10, Height: 10})
	vp := c.Viewport()
	require.Equal(t, ZoomMax, vp.Zoom)
	require.InDelta(t, -160, vp.Center.Lon(), 1e-9)
	require.Equal(t, projection.MaxLatitude, vp.Center.Lat())
}
