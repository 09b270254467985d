package backendstub

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Derived holds the four rasters save-annotations returns.
type Derived struct {
	WithScribbles *image.RGBA // source with every scribble pixel copied on top
	Annotations   *image.RGBA // white canvas with only the scribbles
	Mask          *image.Gray // 255 where a depth scribble was drawn
	IgnoreMask    *image.Gray // 255 where an ignore scribble was drawn
}

// isIgnore reports whether a scribble pixel belongs to the ignore pen.
func isIgnore(r, g, b uint8) bool {
	return int(g) > 200 && int(g) > int(r)+50 && int(g) > int(b)+50
}

// DeriveMasks splits the annotation layer into a depth mask and an ignore
// mask. Every non-white pixel of annotations is a scribble. Both images must
// have the same size.
func DeriveMasks(source, annotations image.Image) (*Derived, error) {
	sb, ab := source.Bounds(), annotations.Bounds()
	if sb.Dx() != ab.Dx() || sb.Dy() != ab.Dy() {
		return nil, fmt.Errorf("annotation layer is %dx%d, source is %dx%d", ab.Dx(), ab.Dy(), sb.Dx(), sb.Dy())
	}
	rect := image.Rect(0, 0, sb.Dx(), sb.Dy())

	d := &Derived{
		WithScribbles: image.NewRGBA(rect),
		Annotations:   image.NewRGBA(rect),
		Mask:          image.NewGray(rect),
		IgnoreMask:    image.NewGray(rect),
	}
	draw.Draw(d.WithScribbles, rect, source, sb.Min, draw.Src)
	draw.Draw(d.Annotations, rect, image.White, image.Point{}, draw.Src)

	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			px := color.RGBAModel.Convert(annotations.At(ab.Min.X+x, ab.Min.Y+y)).(color.RGBA)
			if px.R == 255 && px.G == 255 && px.B == 255 {
				continue
			}
			px.A = 255
			d.Annotations.SetRGBA(x, y, px)
			d.WithScribbles.SetRGBA(x, y, px)
			if isIgnore(px.R, px.G, px.B) {
				d.IgnoreMask.SetGray(x, y, color.Gray{Y: 255})
			} else {
				d.Mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return d, nil
}

// grayscale is the stand-in depth map returned by process-anisotropic.
func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
