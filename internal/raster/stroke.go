package raster

import (
	"image"
	"image/draw"
)

// StampPoint fills a Size x Size square centred on p with the brush colour.
// The top-left corner is p - Size/2 (integer division), so even sizes lean
// up-left by one pixel. Writes are clipped to the target bounds and use
// draw.Src, never blending with what is underneath.
func StampPoint(dst draw.Image, p image.Point, b Brush) {
	if b.Size < 1 {
		return
	}
	half := b.Size / 2
	topLeft := image.Pt(p.X-half, p.Y-half)
	r := image.Rectangle{Min: topLeft, Max: topLeft.Add(image.Pt(b.Size, b.Size))}.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, &image.Uniform{C: b.Color}, image.Point{}, draw.Src)
}

// DrawSegment stamps the brush on every pixel of the integer Bresenham line
// from a to b. A nil a is the first sample of a stroke and stamps b only.
func DrawSegment(dst draw.Image, a *image.Point, b image.Point, brush Brush) {
	if a == nil {
		StampPoint(dst, b, brush)
		return
	}
	for _, p := range Line(*a, b) {
		StampPoint(dst, p, brush)
	}
}

// Line returns the pixels visited walking from a to b, both ends included.
func Line(a, b image.Point) []image.Point {
	x0, y0, x1, y1 := a.X, a.Y, b.X, b.Y
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}

	pts := make([]image.Point, 0, max(dx, dy)+1)
	err := dx - dy
	for {
		pts = append(pts, image.Pt(x0, y0))
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
	return pts
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
