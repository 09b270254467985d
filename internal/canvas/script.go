package canvas

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/andresmejia3/depthbrush/internal/raster"
)

// Op is a stroke script directive.
type Op string

const (
	OpView  Op = "view"
	OpSize  Op = "size"
	OpDepth Op = "depth"
	OpMode  Op = "mode"
	OpColor Op = "color"
	OpDown  Op = "down"
	OpMove  Op = "move"
	OpUp    Op = "up"
	OpLeave Op = "leave"
	OpLine  Op = "line"
)

// arity is the number of numeric arguments per directive. -1 means one word.
var arity = map[Op]int{
	OpView:  4,
	OpSize:  1,
	OpDepth: 1,
	OpMode:  -1,
	OpColor: -1,
	OpDown:  2,
	OpMove:  2,
	OpUp:    0,
	OpLeave: 0,
	OpLine:  4,
}

// Command is one parsed line of a stroke script.
type Command struct {
	Line int
	Op   Op
	Args []float64
	Word string
}

// ScriptError points at the offending line of a stroke script.
type ScriptError struct {
	Line int
	Msg  string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("stroke script line %d: %s", e.Line, e.Msg)
}

// ParseScript reads a stroke script. Blank lines and '#' comments are skipped.
func ParseScript(r io.Reader) ([]Command, error) {
	var cmds []Command
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		op := Op(strings.ToLower(fields[0]))
		want, ok := arity[op]
		if !ok {
			return nil, &ScriptError{Line: n, Msg: fmt.Sprintf("unknown directive %q", fields[0])}
		}
		args := fields[1:]

		cmd := Command{Line: n, Op: op}
		if want < 0 {
			if len(args) != 1 {
				return nil, &ScriptError{Line: n, Msg: fmt.Sprintf("%s takes one argument", op)}
			}
			cmd.Word = args[0]
			cmds = append(cmds, cmd)
			continue
		}
		if len(args) != want {
			return nil, &ScriptError{Line: n, Msg: fmt.Sprintf("%s takes %d arguments, got %d", op, want, len(args))}
		}
		for _, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, &ScriptError{Line: n, Msg: fmt.Sprintf("bad number %q", a)}
			}
			cmd.Args = append(cmd.Args, v)
		}
		cmds = append(cmds, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stroke script: %w", err)
	}
	return cmds, nil
}

// pen tracks the brush controls while a script is replayed.
type pen struct {
	size     int
	depth    int
	mode     raster.Mode
	ignore   color.RGBA
	override *color.RGBA
}

func (p *pen) brush() raster.Brush {
	b := raster.BrushFor(p.mode, p.depth, p.size, p.ignore)
	if p.override != nil {
		b.Color = *p.override
	}
	return b
}

// Replay drives the surface through cmds using the same pointer handlers as
// interactive input. Brush directives take effect from the next segment.
func (s *Surface) Replay(cmds []Command, ignoreColor color.RGBA) error {
	if s.state == StateEmpty {
		return ErrNotReady
	}

	cur := s.brush
	p := &pen{size: cur.Size, mode: cur.Mode, ignore: ignoreColor}
	if cur.Mode == raster.ModeAnnotate {
		p.depth = int(cur.Color.R)
	}

	for _, c := range cmds {
		var err error
		switch c.Op {
		case OpView:
			s.SetViewport(raster.Viewport{Left: c.Args[0], Top: c.Args[1], Width: c.Args[2], Height: c.Args[3]})
		case OpSize:
			p.size = int(c.Args[0])
			err = s.SetBrush(p.brush())
		case OpDepth:
			p.depth = int(c.Args[0])
			p.mode = raster.ModeAnnotate
			p.override = nil
			err = s.SetBrush(p.brush())
		case OpMode:
			p.mode, err = raster.ParseMode(c.Word)
			if err == nil {
				p.override = nil
				err = s.SetBrush(p.brush())
			}
		case OpColor:
			var col color.RGBA
			col, err = raster.ParseColor(c.Word)
			if err == nil {
				p.override = &col
				err = s.SetBrush(p.brush())
			}
		case OpDown:
			err = s.PointerDown(c.Args[0], c.Args[1])
		case OpMove:
			err = s.PointerMove(c.Args[0], c.Args[1])
		case OpUp:
			s.PointerUp()
		case OpLeave:
			s.PointerLeave()
		case OpLine:
			if err = s.PointerDown(c.Args[0], c.Args[1]); err == nil {
				err = s.PointerMove(c.Args[2], c.Args[3])
			}
			s.PointerUp()
		}
		if err != nil {
			return &ScriptError{Line: c.Line, Msg: err.Error()}
		}
	}
	s.endStroke()
	return nil
}
