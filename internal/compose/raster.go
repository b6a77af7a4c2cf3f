package compose

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// RasterSurface renders draw calls into an RGBA image. It backs the headless
// CLI renderer and the compositor tests; a GUI embedding supplies its own
// Surface instead.
type RasterSurface struct {
	img   *image.RGBA
	stack []point
}

type point struct {
	x, y float64
}

func NewRasterSurface(width, height int) *RasterSurface {
	return &RasterSurface{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Image returns the backing image.
func (r *RasterSurface) Image() *image.RGBA {
	return r.img
}

func (r *RasterSurface) PushTranslation(dx, dy float64) {
	cur := r.offset()
	r.stack = append(r.stack, point{cur.x + dx, cur.y + dy})
}

func (r *RasterSurface) Pop() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

func (r *RasterSurface) offset() point {
	if len(r.stack) == 0 {
		return point{}
	}
	return r.stack[len(r.stack)-1]
}

func (r *RasterSurface) translate(rect image.Rectangle) image.Rectangle {
	off := r.offset()
	return rect.Add(image.Pt(int(math.Round(off.x)), int(math.Round(off.y))))
}

func (r *RasterSurface) DrawImage(img image.Image, dst image.Rectangle) {
	dst = r.translate(dst)
	b := img.Bounds()
	if b.Dx() == dst.Dx() && b.Dy() == dst.Dy() {
		draw.Draw(r.img, dst, img, b.Min, draw.Over)
		return
	}
	xdraw.ApproxBiLinear.Scale(r.img, dst, img, b, xdraw.Over, nil)
}

func (r *RasterSurface) DrawImageRegion(img image.Image, src, dst image.Rectangle) {
	xdraw.ApproxBiLinear.Scale(r.img, r.translate(dst), img, src, xdraw.Over, nil)
}
