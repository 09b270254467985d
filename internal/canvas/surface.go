package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/andresmejia3/depthbrush/internal/raster"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

// State is the lifecycle of a Surface.
type State int

const (
	StateEmpty State = iota
	StateReady
	StateDrawing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	case StateDrawing:
		return "drawing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrNotReady is returned when the surface has no image loaded.
var ErrNotReady = errors.New("canvas: no image loaded")

// DecodeError reports a source image that could not be loaded into the buffers.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "canvas: decode image: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Snapshot holds both buffers encoded as PNG data URIs.
type Snapshot struct {
	WithScribbles string // composite: source image plus strokes
	Annotations   string // mask: white background plus strokes
}

// Surface owns the composite and mask buffers of the active image and
// replays every stroke segment into both of them.
type Surface struct {
	composite *image.RGBA
	mask      *image.RGBA
	state     State
	last      *image.Point
	brush     raster.Brush
	view      raster.Viewport
	log       *zap.Logger
}

// Option configures a Surface.
type Option func(*Surface)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option { return func(s *Surface) { s.log = l } }

// WithBrush sets the initial brush.
func WithBrush(b raster.Brush) Option { return func(s *Surface) { s.brush = b } }

// New returns an empty surface.
func New(opts ...Option) *Surface {
	s := &Surface{
		brush: raster.BrushFor(raster.ModeAnnotate, 0, 5, raster.DefaultIgnoreColor),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Surface) State() State { return s.state }

// Brush returns the brush applied to the next segment.
func (s *Surface) Brush() raster.Brush { return s.brush }

// SetBrush changes the brush. It takes effect from the next segment, even mid-stroke.
func (s *Surface) SetBrush(b raster.Brush) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.brush = b
	return nil
}

// SetViewport records where the composite is displayed. Its bitmap size is
// forced to the loaded image.
func (s *Surface) SetViewport(v raster.Viewport) {
	if s.composite != nil {
		b := s.composite.Bounds()
		v.BitmapWidth, v.BitmapHeight = b.Dx(), b.Dy()
	}
	s.view = v
}

// Viewport returns the display mapping in use.
func (s *Surface) Viewport() raster.Viewport { return s.view }

// Load decodes r and resets both buffers to its native size.
// On failure the surface is left Empty.
func (s *Surface) Load(r io.Reader) error {
	img, format, err := image.Decode(r)
	if err != nil {
		s.reset()
		return &DecodeError{Err: err}
	}
	s.log.Debug("decoded source image", zap.String("format", format))
	return s.LoadImage(img)
}

// LoadImage resets both buffers from an already decoded image.
func (s *Surface) LoadImage(img image.Image) error {
	b := img.Bounds()
	if b.Empty() {
		s.reset()
		return &DecodeError{Err: errors.New("image has no pixels")}
	}
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	composite := image.NewRGBA(rect)
	draw.Draw(composite, rect, img, b.Min, draw.Src)

	mask := image.NewRGBA(rect)
	draw.Draw(mask, rect, &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	s.composite = composite
	s.mask = mask
	s.last = nil
	s.state = StateReady
	s.view = raster.Identity(rect.Dx(), rect.Dy())

	s.log.Debug("surface ready", zap.Int("width", rect.Dx()), zap.Int("height", rect.Dy()))
	return nil
}

func (s *Surface) reset() {
	s.composite = nil
	s.mask = nil
	s.last = nil
	s.state = StateEmpty
}

// PointerDown starts a stroke and stamps its first point on both buffers.
func (s *Surface) PointerDown(clientX, clientY float64) error {
	if s.state == StateEmpty {
		return ErrNotReady
	}
	p := s.view.Map(clientX, clientY)
	s.apply(nil, p)
	s.last = &p
	s.state = StateDrawing
	return nil
}

// PointerMove extends the active stroke. Moves without a pressed pointer are ignored.
func (s *Surface) PointerMove(clientX, clientY float64) error {
	if s.state == StateEmpty {
		return ErrNotReady
	}
	if s.state != StateDrawing {
		return nil
	}
	p := s.view.Map(clientX, clientY)
	s.apply(s.last, p)
	s.last = &p
	return nil
}

// PointerUp ends the active stroke.
func (s *Surface) PointerUp() { s.endStroke() }

// PointerLeave ends the active stroke when the pointer leaves the element.
func (s *Surface) PointerLeave() { s.endStroke() }

func (s *Surface) endStroke() {
	if s.state == StateDrawing {
		s.state = StateReady
	}
	s.last = nil
}

// apply is the only place buffers are written: both receive the same segment
// with the same brush value.
func (s *Surface) apply(from *image.Point, to image.Point) {
	brush := s.brush
	raster.DrawSegment(s.composite, from, to, brush)
	raster.DrawSegment(s.mask, from, to, brush)
}

// Composite returns the preview buffer. It is nil while Empty.
func (s *Surface) Composite() *image.RGBA { return s.composite }

// Mask returns the semantic buffer. It is nil while Empty.
func (s *Surface) Mask() *image.RGBA { return s.mask }

// Serialize encodes both buffers as PNG data URIs.
func (s *Surface) Serialize() (Snapshot, error) {
	if s.state == StateEmpty || s.composite == nil || s.mask == nil {
		return Snapshot{}, ErrNotReady
	}
	withScribbles, err := EncodeDataURI(s.composite)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode composite: %w", err)
	}
	annotations, err := EncodeDataURI(s.mask)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode mask: %w", err)
	}
	return Snapshot{WithScribbles: withScribbles, Annotations: annotations}, nil
}

// EncodeDataURI encodes img as a base64 PNG data URI.
func EncodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return utils.DataURI("image/png", buf.Bytes()), nil
}
