// Package pacing releases buffered narration fragments at a steady
// cadence so burst arrivals still read as a gradual reveal.
package pacing

import (
	"strings"
	"sync"
	"time"
)

// DefaultTickInterval is the reveal cadence used when none is configured.
const DefaultTickInterval = 50 * time.Millisecond

// Scheduler owns the display buffer: a FIFO of pending fragments and the
// accumulated text already released. The stream session appends, the tick
// loop pops; both go through the mutex, so there are never two writers to
// the same field.
type Scheduler struct {
	mu          sync.Mutex
	pending     []string
	accumulated strings.Builder
	running     bool
	stopc       chan struct{}

	interval time.Duration
	onUpdate func(text string)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval overrides the reveal cadence.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithUpdateFunc registers a callback invoked with the full accumulated
// text each time a fragment is released. The callback runs outside the
// scheduler lock.
func WithUpdateFunc(fn func(text string)) Option {
	return func(s *Scheduler) {
		s.onUpdate = fn
	}
}

// NewScheduler creates a stopped scheduler with an empty buffer.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{interval: DefaultTickInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends a fragment to the pending buffer. Fragments are
// released in exactly the order they were enqueued.
func (s *Scheduler) Enqueue(text string) {
	s.mu.Lock()
	s.pending = append(s.pending, text)
	s.mu.Unlock()
}

// Start launches the tick loop. Calling Start while already running is a
// no-op. An empty buffer keeps the loop idling; only Stop ends it.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopc = make(chan struct{})
	stopc := s.stopc
	s.mu.Unlock()

	go s.loop(stopc)
}

// Stop ends the tick loop. Pending fragments stay buffered; use
// FlushRemaining or Reset to dispose of them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopc)
}

// FlushRemaining drains the pending buffer into the accumulated text in
// one step and returns the drained remainder. Used at settlement when the
// tail should appear immediately rather than paced.
func (s *Scheduler) FlushRemaining() string {
	s.mu.Lock()
	remainder := strings.Join(s.pending, "")
	s.pending = nil
	s.accumulated.WriteString(remainder)
	text := s.accumulated.String()
	fn := s.onUpdate
	s.mu.Unlock()

	if remainder != "" && fn != nil {
		fn(text)
	}
	return remainder
}

// DiscardPending drops buffered fragments without releasing them. The
// accumulated text is untouched; failed actions keep what was already
// shown but never reveal more.
func (s *Scheduler) DiscardPending() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Reset clears both the pending buffer and the accumulated text, ready
// for a new action.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.pending = nil
	s.accumulated.Reset()
	s.mu.Unlock()
}

// Accumulated returns everything released so far.
func (s *Scheduler) Accumulated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulated.String()
}

// PendingLen returns the number of buffered, not-yet-released fragments.
func (s *Scheduler) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) loop(stopc chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopc:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick releases at most one fragment.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	fragment := s.pending[0]
	s.pending = s.pending[1:]
	s.accumulated.WriteString(fragment)
	text := s.accumulated.String()
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(text)
	}
}
