package utils

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// maxFrameBufferSize caps the accumulation buffer (8 MB). An upstream that
// never sends a blank-line separator would otherwise grow the buffer without
// bound; once the cap is hit Next returns an error instead.
const maxFrameBufferSize = 8 * 1024 * 1024

// readChunkSize is the size of each incremental read from the upstream body.
const readChunkSize = 4 * 1024

// DoneSentinel is the literal payload that terminates an SSE stream in
// OpenAI-compatible APIs.
const DoneSentinel = "[DONE]"

var (
	separatorLF   = []byte("\n\n")
	separatorCRLF = []byte("\r\n\r\n")
)

// FrameScanner splits a byte-oriented stream into SSE event frames. Unlike a
// line scanner it operates on an accumulation buffer and cuts at the earliest
// blank-line separator, so frames are recovered correctly even when the
// upstream chunking is not aligned with event boundaries and when line-ending
// conventions are mixed within one stream. Multi-byte UTF-8 sequences split
// across reads are never broken: bytes are only converted to text once a
// complete frame has been cut, and separators are plain ASCII.
type FrameScanner struct {
	reader  io.Reader
	buffer  []byte
	chunk   []byte
	readErr error
}

// NewFrameScanner creates a FrameScanner reading from reader.
func NewFrameScanner(reader io.Reader) *FrameScanner {
	return &FrameScanner{
		reader: reader,
		chunk:  make([]byte, readChunkSize),
	}
}

// Next returns the next complete frame, excluding its separator. At end of
// stream any residual buffered bytes (a final frame without a trailing blank
// line) are returned as one last frame; after that Next returns io.EOF.
func (s *FrameScanner) Next() ([]byte, error) {
	for {
		if frame, ok := s.cutFrame(); ok {
			return frame, nil
		}

		if s.readErr != nil {
			return s.drainResidue()
		}
		if len(s.buffer) > maxFrameBufferSize {
			return nil, fmt.Errorf("frame exceeds %d bytes without separator", maxFrameBufferSize)
		}

		n, err := s.reader.Read(s.chunk)
		if n > 0 {
			s.buffer = append(s.buffer, s.chunk[:n]...)
		}
		if err != nil {
			s.readErr = err
		}
	}
}

// cutFrame slices off everything before the earliest of "\n\n" or
// "\r\n\r\n" and advances the buffer past the separator.
func (s *FrameScanner) cutFrame() ([]byte, bool) {
	index, separatorLength := findFrameBoundary(s.buffer)
	if index < 0 {
		return nil, false
	}
	frame := s.buffer[:index:index]
	s.buffer = s.buffer[index+separatorLength:]
	return frame, true
}

// drainResidue flushes leftover bytes after the read loop has ended, then
// reports the terminal error (io.EOF for a normal end of stream).
func (s *FrameScanner) drainResidue() ([]byte, error) {
	residue := bytes.TrimSpace(s.buffer)
	s.buffer = nil
	if len(residue) > 0 {
		return residue, nil
	}
	if s.readErr == io.EOF {
		return nil, io.EOF
	}
	return nil, fmt.Errorf("stream read error: %w", s.readErr)
}

// findFrameBoundary locates the earliest blank-line separator in buffer,
// returning its index and length. When both conventions appear, the one that
// starts earlier wins; index -1 means no separator is present yet.
func findFrameBoundary(buffer []byte) (index, separatorLength int) {
	lf := bytes.Index(buffer, separatorLF)
	crlf := bytes.Index(buffer, separatorCRLF)
	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case lf < 0:
		return crlf, len(separatorCRLF)
	case crlf < 0:
		return lf, len(separatorLF)
	case crlf < lf:
		return crlf, len(separatorCRLF)
	default:
		return lf, len(separatorLF)
	}
}

// FrameData extracts the data payload from one SSE frame: every line starting
// with the "data:" marker is stripped of the marker and trimmed, and the
// results are joined with newlines. Comment lines and other SSE fields
// (event:, id:, retry:) are ignored. The result may be the empty string for a
// frame with no data lines, a JSON document, or the [DoneSentinel] literal.
func FrameData(frame []byte) string {
	var dataLines []string
	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
	}
	return strings.TrimSpace(strings.Join(dataLines, "\n"))
}
