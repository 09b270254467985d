package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/andresmejia3/depthbrush/internal/types"
)

// DataPrefix starts every payload line of a frame.
const DataPrefix = "data:"

// ErrNoResult means the stream ended before any terminal frame arrived.
var ErrNoResult = errors.New("stream ended without a result")

// StreamError is a terminal error frame sent by the server.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	if e.Message == "" {
		return "server reported an error"
	}
	return "server reported an error: " + e.Message
}

// MalformedFrameError describes a frame that could not be parsed.
// Monitor logs and skips these; it never returns one.
type MalformedFrameError struct {
	Frame string
	Err   error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", e.Frame, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// ParseFrame extracts the JSON payload of one frame. Multiple data lines are
// joined with "\n" and lines starting with ':' are comments. ok is false for
// a frame holding only comments.
func ParseFrame(frame string) (payload types.StreamFrame, ok bool, err error) {
	var data []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.TrimSpace(line) == "", strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, DataPrefix):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, DataPrefix), " "))
		default:
			return payload, false, &MalformedFrameError{Frame: frame, Err: fmt.Errorf("line without %q prefix", DataPrefix)}
		}
	}
	if len(data) == 0 {
		return payload, false, nil
	}
	if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &payload); err != nil {
		return payload, false, &MalformedFrameError{Frame: frame, Err: err}
	}
	return payload, true, nil
}

// Monitor consumes a streamed job response.
type Monitor struct {
	// OnProgress receives every progress value in arrival order.
	OnProgress func(progress float64)
	Logger     *zap.Logger
	// ChunkSize bounds a single read. Defaults to 4096.
	ChunkSize int
}

// Consume reads r until EOF and returns the terminal success payload.
// An error frame stops processing immediately with a *StreamError.
func (m *Monitor) Consume(ctx context.Context, r io.Reader) (*types.StreamResult, error) {
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := m.ChunkSize
	if size <= 0 {
		size = 4096
	}

	var (
		split  Splitter
		result *types.StreamResult
		frames int
	)

	handle := func(frame string) error {
		payload, ok, err := ParseFrame(frame)
		if err != nil {
			log.Warn("skipping malformed stream frame", zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}
		frames++

		if payload.Progress != nil && m.OnProgress != nil {
			m.OnProgress(*payload.Progress)
		}
		switch payload.Status {
		case types.StatusError:
			return &StreamError{Message: payload.Message}
		case types.StatusSuccess:
			result = &types.StreamResult{Status: payload.Status, Images: payload.Images}
		}
		return nil
	}

	chunk := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := r.Read(chunk)
		if n > 0 {
			for _, frame := range split.Push(chunk[:n]) {
				if err := handle(frame); err != nil {
					return nil, err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read stream: %w", readErr)
		}
	}

	if rest := split.Flush(); rest != "" {
		if err := handle(rest); err != nil {
			return nil, err
		}
	}

	log.Debug("stream finished", zap.Int("frames", frames), zap.Bool("result", result != nil))
	if result == nil {
		return nil, ErrNoResult
	}
	return result, nil
}
