package raster

import (
	"image"
	"math"
)

// Viewport describes where a bitmap of fixed pixel size is shown on screen.
// Left/Top/Width/Height are the element rectangle in display pixels.
type Viewport struct {
	Left, Top     float64
	Width, Height float64
	BitmapWidth   int
	BitmapHeight  int
}

// Identity returns a viewport that shows the bitmap unscaled at the origin.
func Identity(w, h int) Viewport {
	return Viewport{Width: float64(w), Height: float64(h), BitmapWidth: w, BitmapHeight: h}
}

// Inside reports whether a display position lies over the element.
func (v Viewport) Inside(clientX, clientY float64) bool {
	return clientX >= v.Left && clientX < v.Left+v.Width &&
		clientY >= v.Top && clientY < v.Top+v.Height
}

// Map converts a display position into bitmap pixel coordinates:
// round((client - rectOrigin) * bitmapSize / rectSize), clamped to the bitmap.
func (v Viewport) Map(clientX, clientY float64) image.Point {
	if v.Width <= 0 || v.Height <= 0 || v.BitmapWidth <= 0 || v.BitmapHeight <= 0 {
		return image.Point{}
	}
	x := math.Round((clientX - v.Left) * (float64(v.BitmapWidth) / v.Width))
	y := math.Round((clientY - v.Top) * (float64(v.BitmapHeight) / v.Height))
	return image.Pt(toPixel(x, v.BitmapWidth), toPixel(y, v.BitmapHeight))
}

// toPixel clamps before converting so huge or non-finite values cannot
// overflow the int conversion. NaN maps to 0.
func toPixel(f float64, size int) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Min(math.Max(f, 0), float64(size-1)))
}
