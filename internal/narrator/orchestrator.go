// Package narrator is the public entry point of the streaming client: it
// turns one player action into a paced, ordered transcript and a single
// settled result.
package narrator

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nightwell-games/lantern/internal/cache"
	"github.com/nightwell-games/lantern/internal/domain"
	"github.com/nightwell-games/lantern/internal/pacing"
	"github.com/nightwell-games/lantern/internal/stream"
)

// DefaultSettleGrace bounds how long settlement waits for the scheduler
// to finish pacing before flushing the remainder. Tunable, not
// load-bearing: the real condition is "terminal frame received and
// buffer empty".
const DefaultSettleGrace = 200 * time.Millisecond

// State is the per-action lifecycle of the orchestrator.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateSettled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Listener receives the orchestrator's UI-facing output. Implementations
// must not call back into the orchestrator from these methods.
type Listener interface {
	// TranscriptUpdated fires with the full transcript each time text is
	// released.
	TranscriptUpdated(text string)

	// StreamingChanged fires when an action starts and when it settles.
	StreamingChanged(active bool)

	// LoadingLabelChanged fires on each loading-label rotation.
	LoadingLabelChanged(label string)

	// ActionSettled fires once per successfully settled action.
	ActionSettled(result domain.ActionResult)

	// ActionFailed fires once per failed action with a displayable error.
	ActionFailed(err *domain.ClientError)
}

// canceller is the slice of stream.Session the orchestrator needs; tests
// substitute fakes.
type canceller interface {
	Cancel()
}

// openFunc opens a narration stream. The default wraps stream.Open.
type openFunc func(ctx context.Context, req stream.ActionRequest, h stream.Handlers) (canceller, error)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for narration streams.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *Orchestrator) {
		o.httpClient = httpClient
	}
}

// WithPacingInterval overrides the transcript reveal cadence.
func WithPacingInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pacingInterval = d
	}
}

// WithSettleGrace overrides the settlement drain bound.
func WithSettleGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithLoadingInterval overrides the loading-label rotation cadence.
func WithLoadingInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.loadingInterval = d
	}
}

// WithCacheStore attaches the local cache so settlements are recorded
// (journal unlocks, chamber attempt counters).
func WithCacheStore(store *cache.Store) Option {
	return func(o *Orchestrator) {
		o.caches = store
	}
}

// Orchestrator drives one logical action at a time. Submitting a new
// action cancels the outstanding one; its session is suppressed silently
// and never surfaces as an error.
type Orchestrator struct {
	logger          *slog.Logger
	listener        Listener
	endpoint        string
	httpClient      *http.Client
	grace           time.Duration
	pacingInterval  time.Duration
	loadingInterval time.Duration
	caches          *cache.Store

	sched  *pacing.Scheduler
	ticker *loadingTicker
	open   openFunc

	mu         sync.Mutex
	state      State
	generation int
	session    canceller

	sessionID string
	roomID    string
	phase     domain.Phase
	turnCount int
	hints     int
}

// New creates an orchestrator that streams actions to endpoint and
// reports to listener.
func New(endpoint string, listener Listener, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:         slog.Default(),
		listener:       listener,
		endpoint:       endpoint,
		httpClient:     http.DefaultClient,
		grace:          DefaultSettleGrace,
		pacingInterval: pacing.DefaultTickInterval,
		state:          StateIdle,
		phase:          domain.PhasePlaying,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.sched = pacing.NewScheduler(
		pacing.WithTickInterval(o.pacingInterval),
		pacing.WithUpdateFunc(listener.TranscriptUpdated),
	)
	o.ticker = newLoadingTicker(o.loadingInterval, listener.LoadingLabelChanged)
	o.open = func(ctx context.Context, req stream.ActionRequest, h stream.Handlers) (canceller, error) {
		return stream.Open(ctx, o.endpoint, req, h,
			stream.WithHTTPClient(o.httpClient),
			stream.WithLogger(o.logger),
		)
	}
	return o
}

// BindSession adopts a bootstrapped game session. Until a session is
// bound, SubmitAction rejects with ErrNoSession.
func (o *Orchestrator) BindSession(state domain.SessionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionID = state.SessionID
	o.roomID = state.RoomID
	o.phase = state.Phase
	o.turnCount = state.TurnCount
	o.hints = state.HintsUnlocked
}

// SubmitAction starts streaming one player action. Any in-flight action
// is cancelled first; its buffered text is discarded and its callbacks
// are suppressed. Empty actions and actions before BindSession are
// rejected without side effects.
func (o *Orchestrator) SubmitAction(ctx context.Context, actionText string) error {
	actionText = strings.TrimSpace(actionText)

	o.mu.Lock()
	if o.sessionID == "" {
		o.mu.Unlock()
		return domain.ErrNoSession
	}
	if actionText == "" {
		o.mu.Unlock()
		return domain.ErrEmptyAction
	}

	o.generation++
	gen := o.generation
	if o.session != nil {
		o.session.Cancel()
		o.session = nil
	}
	o.state = StateConnecting
	req := stream.ActionRequest{
		SessionID: o.sessionID,
		Action:    actionText,
		RoomID:    o.roomID,
	}
	o.mu.Unlock()

	// Hard reset: a superseded action's buffered text never bleeds into
	// the new transcript.
	o.sched.Stop()
	o.sched.Reset()
	o.ticker.Start()
	o.listener.StreamingChanged(true)

	o.logger.Info("submitting action",
		slog.String("session_id", req.SessionID),
		slog.String("room_id", req.RoomID),
		slog.Int("generation", gen),
	)

	session, err := o.open(ctx, req, stream.Handlers{
		OnFragment: func(text string) { o.onFragment(gen, text) },
		OnSettled:  func(result domain.ActionResult) { o.onSettled(gen, result) },
		OnError:    func(cerr *domain.ClientError) { o.onError(gen, cerr) },
	})
	if err != nil {
		o.ticker.Stop()
		o.mu.Lock()
		if gen == o.generation {
			o.state = StateSettled
		}
		o.mu.Unlock()
		o.listener.StreamingChanged(false)
		return err
	}

	o.mu.Lock()
	if gen == o.generation {
		o.session = session
	} else {
		session.Cancel()
	}
	o.mu.Unlock()
	return nil
}

// onFragment enqueues one narration fragment for paced display.
func (o *Orchestrator) onFragment(gen int, text string) {
	o.mu.Lock()
	if gen != o.generation || o.state == StateDraining || o.state == StateSettled {
		o.mu.Unlock()
		return
	}
	if o.state == StateConnecting {
		o.state = StateStreaming
	}
	o.mu.Unlock()

	o.ticker.Stop()
	o.sched.Enqueue(text)
	o.sched.Start()
}

// onSettled performs the terminal reconciliation for a completed action:
// drain the scheduler, flush the tail, adopt the authoritative state, and
// notify exactly once.
func (o *Orchestrator) onSettled(gen int, result domain.ActionResult) {
	o.mu.Lock()
	if gen != o.generation || o.state == StateDraining || o.state == StateSettled {
		o.mu.Unlock()
		return
	}
	o.state = StateDraining
	o.mu.Unlock()

	o.ticker.Stop()
	o.awaitDrain()
	o.sched.FlushRemaining()
	o.sched.Stop()

	finalText := o.sched.Accumulated()
	if finalText == "" {
		// Zero fragments arrived but the server still narrated: display
		// the completion text verbatim.
		finalText = result.Narration
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	o.state = StateSettled
	o.session = nil
	if result.SessionID != "" && result.SessionID != o.sessionID {
		// Server-side session replacement: adopt silently.
		o.logger.Info("adopting replacement session id",
			slog.String("old", o.sessionID),
			slog.String("new", result.SessionID),
		)
		o.sessionID = result.SessionID
	}
	o.phase = result.Phase
	o.turnCount = result.TurnCount
	o.hints = result.HintsUnlocked
	roomID := o.roomID
	o.mu.Unlock()

	o.recordSettlement(result, roomID)

	o.listener.TranscriptUpdated(finalText)
	o.listener.StreamingChanged(false)
	o.listener.ActionSettled(result)
}

// onError settles a failed action: buffered-but-unreleased text is
// discarded, already-displayed text stays, and the failure surfaces once.
func (o *Orchestrator) onError(gen int, cerr *domain.ClientError) {
	o.mu.Lock()
	if gen != o.generation || o.state == StateSettled {
		o.mu.Unlock()
		return
	}
	o.state = StateSettled
	o.session = nil
	o.mu.Unlock()

	o.ticker.Stop()
	o.sched.DiscardPending()
	o.sched.Stop()

	o.logger.Warn("action failed",
		slog.String("kind", string(cerr.Kind)),
		slog.String("message", cerr.Message),
	)
	o.listener.StreamingChanged(false)
	o.listener.ActionFailed(cerr)
}

// awaitDrain waits for the scheduler to finish pacing, bounded by the
// grace period.
func (o *Orchestrator) awaitDrain() {
	poll := o.pacingInterval / 2
	if poll <= 0 {
		poll = 5 * time.Millisecond
	}
	deadline := time.Now().Add(o.grace)
	for time.Now().Before(deadline) {
		if o.sched.PendingLen() == 0 {
			return
		}
		time.Sleep(poll)
	}
}

// recordSettlement persists what the turn changed into the local caches.
// Cache failures are logged, never surfaced: persistence is advisory.
func (o *Orchestrator) recordSettlement(result domain.ActionResult, roomID string) {
	if o.caches == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if result.JournalChapterUnlocked != "" {
		if err := o.caches.UnlockChapter(ctx, result.JournalChapterUnlocked, result.Narration); err != nil {
			o.logger.Warn("failed to record journal unlock", slog.String("error", err.Error()))
		}
	}
	switch result.Phase {
	case domain.PhaseLost:
		if _, err := o.caches.IncrementAttempts(ctx, roomID); err != nil {
			o.logger.Warn("failed to record chamber attempt", slog.String("error", err.Error()))
		}
	case domain.PhaseWon:
		if err := o.caches.ResetAttempts(ctx, roomID); err != nil {
			o.logger.Warn("failed to reset chamber attempts", slog.String("error", err.Error()))
		}
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionID returns the session identifier currently held.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Phase returns the last confirmed game phase.
func (o *Orchestrator) Phase() domain.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// TurnCount returns the last confirmed turn count.
func (o *Orchestrator) TurnCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turnCount
}

// HintsUnlocked returns the last confirmed hint count.
func (o *Orchestrator) HintsUnlocked() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hints
}

// Transcript returns the text released so far for the current action.
func (o *Orchestrator) Transcript() string {
	return o.sched.Accumulated()
}
