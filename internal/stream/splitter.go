package stream

import (
	"bytes"
	"strings"
)

// Separator ends every frame on the wire.
const Separator = "\n\n"

// Splitter reassembles frames from chunks cut at arbitrary byte offsets.
// It is a plain state object so it can be driven without any transport.
//
// Each byte is scanned once: scan marks how far the buffer has been searched
// for line feeds, so a large frame arriving in small reads stays linear.
type Splitter struct {
	buf  []byte
	scan int
}

// Push appends chunk and returns every frame it completed, in order.
// The trailing partial frame stays buffered for the next call.
func (s *Splitter) Push(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	s.buf = append(s.buf, chunk...)

	var frames []string
	start := 0
	for {
		i := bytes.IndexByte(s.buf[s.scan:], '\n')
		if i < 0 {
			s.scan = len(s.buf)
			break
		}
		lf := s.scan + i
		s.scan = lf + 1

		// A blank line ends the frame: "\n" or "\r\n" right after the
		// previous line ending, which must belong to the current frame.
		p := lf - 1
		if p >= start && s.buf[p] == '\r' {
			p--
		}
		if p < start || s.buf[p] != '\n' {
			continue
		}
		end := p
		if end > start && s.buf[end-1] == '\r' {
			end--
		}
		if frame := normalize(s.buf[start:end]); strings.TrimSpace(frame) != "" {
			frames = append(frames, frame)
		}
		start = lf + 1
	}

	if start > 0 {
		n := copy(s.buf, s.buf[start:])
		s.buf = s.buf[:n]
		s.scan -= start
	}
	return frames
}

// Flush returns whatever is left once the stream has ended, or "" when
// only whitespace remains. The splitter is empty afterwards.
func (s *Splitter) Flush() string {
	rest := normalize(s.buf)
	s.buf = s.buf[:0]
	s.scan = 0
	if strings.TrimSpace(rest) == "" {
		return ""
	}
	return rest
}

// Buffered returns the number of bytes waiting for a separator.
func (s *Splitter) Buffered() int { return len(s.buf) }

func normalize(b []byte) string {
	return strings.ReplaceAll(string(b), "\r\n", "\n")
}
