package compose

import "image"

// Surface is the display collaborator the compositor draws onto. The engine
// only ever needs a 2D translation and two image blits; rotation and styling
// belong to the embedding UI.
type Surface interface {
	// PushTranslation applies a translation to all subsequent draws.
	PushTranslation(dx, dy float64)
	// Pop removes the most recent translation.
	Pop()
	// DrawImage draws the whole image into dst.
	DrawImage(img image.Image, dst image.Rectangle)
	// DrawImageRegion draws the src sub-region of the image stretched to
	// fill dst.
	DrawImageRegion(img image.Image, src, dst image.Rectangle)
}
