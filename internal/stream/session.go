// Package stream owns the transport lifecycle of one narration stream:
// a single long-lived POST whose response bytes are parsed into frames,
// decoded into events, and handed to the caller's handlers.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nightwell-games/lantern/internal/domain"
	"github.com/nightwell-games/lantern/internal/protocol"
	"github.com/nightwell-games/lantern/internal/sse"
)

const defaultUserAgent = "lantern/1.0"

// ActionRequest is the streaming request body for one player action.
type ActionRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	RoomID    string `json:"room_id"`
}

// Handlers receives the session's output. OnFragment may fire many times;
// exactly one of OnSettled or OnError fires per session, and only after
// the underlying connection is closed. A cancelled session fires nothing
// further.
type Handlers struct {
	OnFragment func(text string)
	OnSettled  func(result domain.ActionResult)
	OnError    func(err *domain.ClientError)
}

// Option configures a Session before it opens.
type Option func(*Session)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Session) {
		s.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		s.userAgent = ua
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session is one in-flight narration stream. Create it with Open; tear it
// down early with Cancel.
type Session struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	handlers   Handlers

	cancel    context.CancelFunc
	cancelled atomic.Bool
	settled   atomic.Bool
	done      chan struct{}
}

// terminal is the single settling outcome of a session.
type terminal struct {
	result *domain.ActionResult
	err    *domain.ClientError
}

// Open issues the streaming POST and starts the read loop. It returns an
// error only when the request cannot be constructed; connection and
// protocol failures are delivered through OnError. There is no retry
// here: resubmitting the action is the caller's decision.
func Open(ctx context.Context, endpoint string, req ActionRequest, h Handlers, opts ...Option) (*Session, error) {
	s := &Session{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		userAgent:  defaultUserAgent,
		handlers:   h,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action request: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	httpReq, err := http.NewRequestWithContext(sctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	go s.run(httpReq)
	return s, nil
}

// Cancel aborts the transport immediately and suppresses all further
// handler delivery. Safe to call at any time, from any goroutine.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
}

// Done is closed once the read loop has exited and any settlement has
// been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run(httpReq *http.Request) {
	defer close(s.done)
	defer s.cancel()

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.deliver(terminal{err: domain.ErrTransport("narration request failed").WithCause(err)})
		return
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		msg := fmt.Sprintf("narration endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
		s.deliver(terminal{err: domain.ErrTransport(msg).WithStatusCode(resp.StatusCode)})
		return
	}

	term := s.readLoop(resp.Body)

	// The connection is fully closed before settlement is delivered, so a
	// late fragment can never race the terminal callback.
	resp.Body.Close()
	s.deliver(term)
}

// readLoop feeds response bytes to the frame parser and dispatches
// decoded events until a terminal event or a transport failure.
func (s *Session) readLoop(body io.Reader) terminal {
	parser := sse.NewParser(s.logger)
	decoder := protocol.NewDecoder(s.logger)

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range parser.Feed(string(buf[:n])) {
				if term, ok := s.handleFrame(decoder, frame); ok {
					return term
				}
			}
		}
		if err != nil {
			// A stream may end without a trailing separator; the buffered
			// remainder is still one last frame block.
			if frame, ok := parser.Close(); ok {
				if term, ok := s.handleFrame(decoder, frame); ok {
					return term
				}
			}
			if err == io.EOF {
				return terminal{err: domain.ErrTransport("stream ended before completion")}
			}
			return terminal{err: domain.ErrTransport("stream read failed").WithCause(err)}
		}
	}
}

// handleFrame decodes one frame. Fragments are forwarded immediately;
// terminal events are returned to the read loop. Undecodable frames were
// already dropped by the decoder.
func (s *Session) handleFrame(decoder *protocol.Decoder, frame sse.Frame) (terminal, bool) {
	event, ok := decoder.Decode(frame)
	if !ok {
		return terminal{}, false
	}

	switch event := event.(type) {
	case protocol.TextFragment:
		if !s.cancelled.Load() && s.handlers.OnFragment != nil {
			s.handlers.OnFragment(event.Text)
		}
		return terminal{}, false
	case protocol.StreamCompleted:
		return terminal{result: &event.Result}, true
	case protocol.StreamFailed:
		return terminal{err: domain.ErrServer(event.Message)}, true
	default:
		return terminal{}, false
	}
}

// deliver fires the settlement callback at most once, and never after
// Cancel.
func (s *Session) deliver(term terminal) {
	if !s.settled.CompareAndSwap(false, true) {
		return
	}
	if s.cancelled.Load() {
		s.logger.Debug("suppressing settlement for cancelled session")
		return
	}

	switch {
	case term.result != nil:
		if s.handlers.OnSettled != nil {
			s.handlers.OnSettled(*term.result)
		}
	case term.err != nil:
		if s.handlers.OnError != nil {
			s.handlers.OnError(term.err)
		}
	}
}
