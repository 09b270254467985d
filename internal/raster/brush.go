package raster

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Mode selects what a stroke means to the depth backend.
type Mode int

const (
	// ModeAnnotate paints a depth value.
	ModeAnnotate Mode = iota
	// ModeIgnore marks a region the diffusion should fill in on its own.
	ModeIgnore
)

func (m Mode) String() string {
	switch m {
	case ModeAnnotate:
		return "annotate"
	case ModeIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "annotate" or "ignore".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annotate", "annotation":
		return ModeAnnotate, nil
	case "ignore":
		return ModeIgnore, nil
	}
	return ModeAnnotate, fmt.Errorf("invalid brush mode %q", s)
}

// DefaultIgnoreColor is the colour of ignore strokes.
var DefaultIgnoreColor = color.RGBA{R: 0x00, G: 0xFF, B: 0x00, A: 0xFF}

// Brush is the stroke configuration read on every segment.
type Brush struct {
	Size  int
	Color color.RGBA
	Mode  Mode
}

// Validate reports whether the brush can be stamped.
func (b Brush) Validate() error {
	if b.Size < 1 {
		return fmt.Errorf("brush size must be >= 1, got %d", b.Size)
	}
	return nil
}

// BrushFor derives the stroke colour from the depth slider and pen mode.
// Annotate paints the depth replicated over R, G and B; Ignore paints ignoreColor.
func BrushFor(mode Mode, depth, size int, ignoreColor color.RGBA) Brush {
	if mode == ModeIgnore {
		return Brush{Size: size, Color: ignoreColor, Mode: ModeIgnore}
	}
	v := uint8(clamp(depth, 0, 255))
	return Brush{Size: size, Color: color.RGBA{R: v, G: v, B: v, A: 0xFF}, Mode: ModeAnnotate}
}

// ParseColor accepts #RRGGBB, an opaque #RRGGBBFF or an SVG colour name.
// Strokes never blend, so translucent colours are rejected.
func ParseColor(s string) (color.RGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return color.RGBA{}, fmt.Errorf("color cannot be empty")
	}
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}
	if !strings.HasPrefix(name, "#") || (len(name) != 7 && len(name) != 9) {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}

	channel := func(i int) (uint8, error) {
		v, err := strconv.ParseUint(name[i:i+2], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid color %q", s)
		}
		return uint8(v), nil
	}
	var out [4]uint8
	out[3] = 0xFF
	for i := 0; i < (len(name)-1)/2; i++ {
		v, err := channel(1 + 2*i)
		if err != nil {
			return color.RGBA{}, err
		}
		out[i] = v
	}
	if out[3] != 0xFF {
		return color.RGBA{}, fmt.Errorf("invalid color %q: alpha must be ff", s)
	}
	return color.RGBA{R: out[0], G: out[1], B: out[2], A: out[3]}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
