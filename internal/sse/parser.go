// Package sse parses the narration server's event-stream framing: blocks
// of "event:" and "data:" lines separated by a blank line.
package sse

import (
	"log/slog"
	"strings"
)

const (
	eventMarker = "event:"
	dataMarker  = "data:"
)

// Frame is one complete event+data block parsed off the wire. Both fields
// are non-empty; blocks missing either line are dropped by the parser.
type Frame struct {
	Event string
	Data  string
}

// Parser reassembles frames from a chunked byte stream. Chunk boundaries
// are arbitrary: a frame, or even the blank-line separator itself, may be
// split across Feed calls, so unconsumed input stays buffered. A Parser is
// single-use; start a new stream with a new Parser.
type Parser struct {
	buf    strings.Builder
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger defaults to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Feed appends a raw chunk and returns every frame completed by it, in
// stream order. Incomplete trailing input remains buffered.
func (p *Parser) Feed(chunk string) []Frame {
	p.buf.WriteString(chunk)

	var frames []Frame
	rest := p.buf.String()
	for {
		block, remainder, ok := cutSeparator(rest)
		if !ok {
			break
		}
		rest = remainder
		if frame, ok := p.parseBlock(block); ok {
			frames = append(frames, frame)
		}
	}

	p.buf.Reset()
	p.buf.WriteString(rest)
	return frames
}

// Close parses whatever remains buffered as one final block. Streams that
// end without a trailing separator still yield their last frame.
func (p *Parser) Close() (Frame, bool) {
	rest := p.buf.String()
	p.buf.Reset()
	if strings.TrimSpace(rest) == "" {
		return Frame{}, false
	}
	return p.parseBlock(rest)
}

// cutSeparator splits s at the leftmost blank-line separator, accepting
// both LF-doubled and CRLF-doubled forms.
func cutSeparator(s string) (block, rest string, ok bool) {
	lf := strings.Index(s, "\n\n")
	crlf := strings.Index(s, "\r\n\r\n")

	switch {
	case lf < 0 && crlf < 0:
		return "", "", false
	case crlf < 0 || (lf >= 0 && lf < crlf):
		return s[:lf], s[lf+2:], true
	default:
		return s[:crlf], s[crlf+4:], true
	}
}

// parseBlock reads a raw frame block line by line. Lines carrying the
// event or data marker fill in the frame; anything else is ignored.
func (p *Parser) parseBlock(block string) (Frame, bool) {
	var frame Frame
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, eventMarker):
			frame.Event = strings.TrimSpace(strings.TrimPrefix(line, eventMarker))
		case strings.HasPrefix(line, dataMarker):
			frame.Data = strings.TrimSpace(strings.TrimPrefix(line, dataMarker))
		}
	}

	if frame.Event == "" || frame.Data == "" {
		p.logger.Debug("dropping incomplete frame",
			slog.String("event", frame.Event),
			slog.Int("block_len", len(block)),
		)
		return Frame{}, false
	}
	return frame, true
}
