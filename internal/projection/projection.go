// Package projection implements the Web-Mercator math that ties geographic
// coordinates, the tile pyramid, and the screen together. All functions are
// pure; points are orb.Point in (longitude, latitude) order.
package projection

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// TileSize is the fixed edge length of every raster tile, in pixels.
	TileSize = 256

	// MaxLatitude is the latitude at which the square Web-Mercator world
	// ends. Latitudes beyond it have no tile row.
	MaxLatitude = 85.0511287798066
)

// WorldSize returns the width of the world in pixels at the given zoom.
// Fractional zoom levels are meaningful during animated pans.
func WorldSize(zoom float64) float64 {
	return TileSize * math.Pow(2, zoom)
}

// WrapLon normalizes a longitude into [-180, 180).
func WrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// ClampLat limits a latitude to the valid Mercator range.
func ClampLat(lat float64) float64 {
	return math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
}

// GeoToTilePixel projects a geographic point to world pixel coordinates at
// the given zoom: x grows east from longitude -180, y grows south from the
// top of the Mercator square.
func GeoToTilePixel(pt orb.Point, zoom float64) (x, y float64) {
	n := WorldSize(zoom)
	latRad := ClampLat(pt.Lat()) * math.Pi / 180
	x = n * (pt.Lon() + 180) / 360
	y = n * (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2
	return x, y
}

// TilePixelToGeo is the inverse of GeoToTilePixel.
func TilePixelToGeo(x, y, zoom float64) orb.Point {
	n := WorldSize(zoom)
	lon := x/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return orb.Point{WrapLon(lon), latRad * 180 / math.Pi}
}

// Pan moves the viewport center by a screen-space drag of (dx, dy) pixels.
// The longitude scale is 360 / (2^zoom * TileSize) degrees per pixel; the
// latitude step is additionally shrunk by cos(lat) to offset Mercator
// stretching. The correction is taken from the current center on every call
// so that repeated pans at high latitude do not drift.
func Pan(center orb.Point, dx, dy, zoom float64) orb.Point {
	perPixel := 360 / WorldSize(zoom)
	lon := WrapLon(center.Lon() - dx*perPixel)
	lat := ClampLat(center.Lat() + dy*perPixel*math.Cos(center.Lat()*math.Pi/180))
	return orb.Point{lon, lat}
}

// ScreenToGeo returns the geographic point under screen position (sx, sy)
// for a viewport of the given pixel size centered on center.
func ScreenToGeo(center orb.Point, zoom float64, width, height int, sx, sy float64) orb.Point {
	cx, cy := GeoToTilePixel(center, zoom)
	wx := cx + sx - float64(width)/2
	wy := cy + sy - float64(height)/2
	return TilePixelToGeo(wx, wy, zoom)
}

// CenterForAnchor solves for the viewport center that places the given
// geographic point under screen position (sx, sy) at the given zoom. It is
// the second half of cursor-anchored zooming.
func CenterForAnchor(anchor orb.Point, zoom float64, width, height int, sx, sy float64) orb.Point {
	ax, ay := GeoToTilePixel(anchor, zoom)
	cx := ax - (sx - float64(width)/2)
	cy := ay - (sy - float64(height)/2)
	return TilePixelToGeo(cx, cy, zoom)
}
