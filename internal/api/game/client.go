// Package game is the request/response client for the game session API:
// session bootstrap, state fetch, the non-streaming action fallback, and
// the room list. The streaming narration path lives in internal/stream.
package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nightwell-games/lantern/internal/domain"
)

const defaultUserAgent = "lantern/1.0"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client is an HTTP client for the game session API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamEndpoint returns the narration streaming endpoint for this API.
func (c *Client) StreamEndpoint() string {
	return c.baseURL + "/v1/narrate"
}

// StartSession starts or resumes a game session.
func (c *Client) StartSession(ctx context.Context, req *StartSessionRequest) (*domain.SessionState, error) {
	var payload sessionPayload
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &payload); err != nil {
		return nil, err
	}
	return toSessionState(payload), nil
}

// GetSession fetches the current state of a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	var payload sessionPayload
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &payload); err != nil {
		return nil, err
	}
	return toSessionState(payload), nil
}

// SubmitAction submits an action over the plain request/response path.
// This is the non-streaming fallback; the paced experience goes through
// the orchestrator instead.
func (c *Client) SubmitAction(ctx context.Context, sessionID, action, roomID string) (*domain.ActionResult, error) {
	req := &actionRequest{SessionID: sessionID, Action: action, RoomID: roomID}
	var payload actionResultPayload
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/action", req, &payload); err != nil {
		return nil, err
	}

	phase, _ := domain.PhaseFromWire(payload.Phase)
	return &domain.ActionResult{
		SessionID:              payload.SessionID,
		TurnCount:              payload.TurnCount,
		Phase:                  phase,
		HintsUnlocked:          payload.HintsUnlocked,
		Outcome:                payload.Outcome,
		Narration:              payload.Narration,
		Traits:                 payload.Traits,
		JourneyStats:           payload.JourneyStats,
		JournalChapterUnlocked: payload.JournalChapterUnlocked,
	}, nil
}

// ListRooms fetches the room list for the room-select screen.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var payload roomListPayload
	if err := c.do(ctx, http.MethodGet, "/v1/rooms", nil, &payload); err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, 0, len(payload.Rooms))
	for _, r := range payload.Rooms {
		rooms = append(rooms, domain.Room{ID: r.ID, Name: r.Name, Visited: r.Visited})
	}
	return rooms, nil
}

// do issues one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ErrTransport("game API request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrTransport("failed to read response").WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, raw)
	}

	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
}

// parseAPIError maps a non-success response onto a client error,
// preferring the server's error message when the body carries one.
func parseAPIError(status int, raw []byte) *domain.ClientError {
	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return domain.ErrServer(payload.Error).WithStatusCode(status)
	}
	msg := fmt.Sprintf("game API returned status %d", status)
	return domain.ErrTransport(msg).WithStatusCode(status)
}

func toSessionState(payload sessionPayload) *domain.SessionState {
	phase, _ := domain.PhaseFromWire(payload.Phase)
	return &domain.SessionState{
		SessionID:     payload.SessionID,
		RoomID:        payload.RoomID,
		Phase:         phase,
		TurnCount:     payload.TurnCount,
		HintsUnlocked: payload.HintsUnlocked,
		Narration:     payload.Narration,
	}
}
