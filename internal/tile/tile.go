package tile

import "fmt"

const (
	// MinZoom and MaxZoom bound the zoom levels the tile service exposes.
	MinZoom = 1
	MaxZoom = 18
)

// Key identifies one tile in the pyramid: a zoom level and a column/row
// position inside the 2^zoom grid. Keys are comparable values and are used
// directly as map keys.
type Key struct {
	Zoom   int
	Column int
	Row    int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Zoom, k.Column, k.Row)
}

// GridSize returns the number of tiles per axis at zoom level z.
func GridSize(z int) int {
	return 1 << uint(z)
}

// WrapColumn normalizes a column index into [0, 2^z). The world wraps in
// longitude, so any integer maps to a real column.
func WrapColumn(col, z int) int {
	n := GridSize(z)
	col %= n
	if col < 0 {
		col += n
	}
	return col
}

// Normalized returns the key with its column wrapped into range. Rows are
// never wrapped; latitude does not repeat.
func (k Key) Normalized() Key {
	k.Column = WrapColumn(k.Column, k.Zoom)
	return k
}

// Valid reports whether the key may be requested at all. Rows outside the
// grid have no tile behind them and must be rejected before any I/O.
func (k Key) Valid() bool {
	if k.Zoom < MinZoom || k.Zoom > MaxZoom {
		return false
	}
	n := GridSize(k.Zoom)
	return k.Row >= 0 && k.Row < n && k.Column >= 0 && k.Column < n
}

// Ancestor returns the key scale levels up the pyramid. The ancestor at
// scale s covers this tile in a (tileSize >> s)-pixel sub-region.
func (k Key) Ancestor(scale int) Key {
	return Key{
		Zoom:   k.Zoom - scale,
		Column: k.Column >> uint(scale),
		Row:    k.Row >> uint(scale),
	}
}
