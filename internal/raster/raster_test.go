package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func whiteCanvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)
	return img
}

func TestViewportMap(t *testing.T) {
	tests := []struct {
		name   string
		vp     Viewport
		cx, cy float64
		want   image.Point
	}{
		{
			name: "Unscaled",
			vp:   Identity(100, 50),
			cx:   10, cy: 20,
			want: image.Pt(10, 20),
		},
		{
			name: "Downscaled display",
			vp:   Viewport{Left: 100, Top: 50, Width: 400, Height: 300, BitmapWidth: 800, BitmapHeight: 600},
			cx:   300, cy: 200,
			want: image.Pt(400, 300),
		},
		{
			name: "Rounds to nearest pixel",
			vp:   Viewport{Width: 300, Height: 300, BitmapWidth: 100, BitmapHeight: 100},
			cx:   4, cy: 5,
			want: image.Pt(1, 2),
		},
		{
			name: "Clamped left and above",
			vp:   Identity(100, 100),
			cx:   -20, cy: -1,
			want: image.Pt(0, 0),
		},
		{
			name: "Clamped right and below",
			vp:   Identity(100, 100),
			cx:   100, cy: 250,
			want: image.Pt(99, 99),
		},
		{
			name: "Huge coordinates clamp to the far edge",
			vp:   Identity(100, 100),
			cx:   1e30, cy: math.Inf(1),
			want: image.Pt(99, 99),
		},
		{
			name: "Huge negative and NaN clamp to the origin",
			vp:   Identity(100, 100),
			cx:   -1e30, cy: math.NaN(),
			want: image.Pt(0, 0),
		},
		{
			name: "Zero sized element",
			vp:   Viewport{BitmapWidth: 10, BitmapHeight: 10},
			cx:   5, cy: 5,
			want: image.Point{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.vp.Map(tt.cx, tt.cy))
		})
	}
}

func TestViewportInside(t *testing.T) {
	vp := Viewport{Left: 10, Top: 10, Width: 20, Height: 20, BitmapWidth: 40, BitmapHeight: 40}
	require.True(t, vp.Inside(10, 10))
	require.True(t, vp.Inside(29.5, 29.5))
	require.False(t, vp.Inside(30, 15))
	require.False(t, vp.Inside(9, 15))
}

func TestStampPointOddAndEvenSizes(t *testing.T) {
	black := color.RGBA{A: 255}

	img := whiteCanvas(20, 20)
	StampPoint(img, image.Pt(10, 10), Brush{Size: 3, Color: black})
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			inside := x >= 9 && x <= 11 && y >= 9 && y <= 11
			require.Equal(t, inside, img.RGBAAt(x, y) == black, "pixel %d,%d", x, y)
		}
	}

	img = whiteCanvas(20, 20)
	StampPoint(img, image.Pt(10, 10), Brush{Size: 4, Color: black})
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			inside := x >= 8 && x <= 11 && y >= 8 && y <= 11
			require.Equal(t, inside, img.RGBAAt(x, y) == black, "pixel %d,%d", x, y)
		}
	}
}

func TestStampPointClipsAtEdges(t *testing.T) {
	img := whiteCanvas(5, 5)
	red := color.RGBA{R: 255, A: 255}
	StampPoint(img, image.Pt(0, 0), Brush{Size: 5, Color: red})

	require.Equal(t, red, img.RGBAAt(0, 0))
	require.Equal(t, red, img.RGBAAt(2, 2))
	require.Equal(t, white, img.RGBAAt(3, 3))

	// Entirely outside the bitmap is a no-op.
	StampPoint(img, image.Pt(-50, -50), Brush{Size: 3, Color: red})
	require.Equal(t, white, img.RGBAAt(4, 4))
}

func TestSizeOneWritesSinglePixels(t *testing.T) {
	img := whiteCanvas(10, 10)
	black := color.RGBA{A: 255}
	a := image.Pt(0, 0)
	DrawSegment(img, &a, image.Pt(9, 9), Brush{Size: 1, Color: black})

	count := 0
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if img.RGBAAt(x, y) == black {
				count++
				require.Equal(t, x, y)
			}
		}
	}
	require.Equal(t, 10, count)
}

func TestLineEndpointsAndConnectivity(t *testing.T) {
	cases := [][2]image.Point{
		{image.Pt(0, 0), image.Pt(7, 3)},
		{image.Pt(7, 3), image.Pt(0, 0)},
		{image.Pt(2, 9), image.Pt(2, -4)},
		{image.Pt(-3, 1), image.Pt(5, 1)},
		{image.Pt(4, 4), image.Pt(4, 4)},
	}
	for _, c := range cases {
		pts := Line(c[0], c[1])
		require.Equal(t, c[0], pts[0])
		require.Equal(t, c[1], pts[len(pts)-1])
		for i := 1; i < len(pts); i++ {
			d := pts[i].Sub(pts[i-1])
			require.LessOrEqual(t, abs(d.X), 1)
			require.LessOrEqual(t, abs(d.Y), 1)
		}
	}
}

func TestDrawSegmentFirstSampleStampsOnlyEnd(t *testing.T) {
	img := whiteCanvas(30, 30)
	black := color.RGBA{A: 255}
	DrawSegment(img, nil, image.Pt(15, 15), Brush{Size: 3, Color: black})

	require.Equal(t, black, img.RGBAAt(15, 15))
	require.Equal(t, black, img.RGBAAt(14, 16))
	require.Equal(t, white, img.RGBAAt(17, 15))
}

func TestDrawSegmentIsDeterministic(t *testing.T) {
	b := Brush{Size: 4, Color: color.RGBA{R: 120, G: 120, B: 120, A: 255}}
	a := image.Pt(3, 77)
	first := whiteCanvas(100, 100)
	second := whiteCanvas(100, 100)
	for i := 0; i < 5; i++ {
		DrawSegment(first, &a, image.Pt(91, 12), b)
	}
	DrawSegment(second, &a, image.Pt(91, 12), b)
	require.Equal(t, first.Pix, second.Pix)
}

func TestVerticalBarOnWhiteMask(t *testing.T) {
	img := whiteCanvas(100, 100)
	black := color.RGBA{A: 255}
	a := image.Pt(10, 10)
	DrawSegment(img, &a, image.Pt(10, 20), Brush{Size: 5, Color: black})

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			got := img.RGBAAt(x, y)
			switch {
			case x >= 8 && x <= 12 && y >= 10 && y <= 20:
				require.Equal(t, black, got, "bar pixel %d,%d", x, y)
			case x < 8 || x > 12 || y < 8 || y > 22:
				require.Equal(t, white, got, "pixel %d,%d", x, y)
			}
		}
	}
}

func TestBrushFor(t *testing.T) {
	b := BrushFor(ModeAnnotate, 25, 5, DefaultIgnoreColor)
	require.Equal(t, color.RGBA{R: 25, G: 25, B: 25, A: 255}, b.Color)
	require.Equal(t, ModeAnnotate, b.Mode)

	b = BrushFor(ModeAnnotate, 400, 5, DefaultIgnoreColor)
	require.Equal(t, uint8(255), b.Color.R)

	b = BrushFor(ModeIgnore, 25, 7, DefaultIgnoreColor)
	require.Equal(t, DefaultIgnoreColor, b.Color)
	require.Equal(t, 7, b.Size)

	require.Error(t, Brush{Size: 0}.Validate())
	require.NoError(t, Brush{Size: 1}.Validate())
}

func TestParseColorAndMode(t *testing.T) {
	c, err := ParseColor("#00FF00")
	require.NoError(t, err)
	require.Equal(t, DefaultIgnoreColor, c)

	c, err = ParseColor("#102030ff")
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xFF}, c)

	_, err = ParseColor("#00FF0080")
	require.Error(t, err)

	c, err = ParseColor("Lime")
	require.NoError(t, err)
	require.Equal(t, DefaultIgnoreColor, c)

	_, err = ParseColor("#12345")
	require.Error(t, err)
	_, err = ParseColor("#GG0000")
	require.Error(t, err)

	m, err := ParseMode("Ignore")
	require.NoError(t, err)
	require.Equal(t, ModeIgnore, m)
	_, err = ParseMode("erase")
	require.Error(t, err)
	require.Equal(t, "annotate", ModeAnnotate.String())
}
