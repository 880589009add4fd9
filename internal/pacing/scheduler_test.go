package pacing

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReleaseOrder(t *testing.T) {
	s := NewScheduler(WithTickInterval(time.Millisecond))
	defer s.Stop()

	var fragments []string
	for i := 0; i < 20; i++ {
		fragments = append(fragments, fmt.Sprintf("frag-%02d ", i))
	}

	// Burst-enqueue everything before starting: release order must still
	// match enqueue order.
	for _, f := range fragments {
		s.Enqueue(f)
	}
	s.Start()

	waitFor(t, 2*time.Second, func() bool { return s.PendingLen() == 0 })

	var want string
	for _, f := range fragments {
		want += f
	}
	if got := s.Accumulated(); got != want {
		t.Errorf("accumulated = %q, want %q", got, want)
	}
}

func TestReleaseOneFragmentPerTick(t *testing.T) {
	var mu sync.Mutex
	var updates []string

	s := NewScheduler(
		WithTickInterval(5*time.Millisecond),
		WithUpdateFunc(func(text string) {
			mu.Lock()
			updates = append(updates, text)
			mu.Unlock()
		}),
	)
	defer s.Stop()

	s.Enqueue("a")
	s.Enqueue("b")
	s.Enqueue("c")
	s.Start()

	waitFor(t, 2*time.Second, func() bool { return s.PendingLen() == 0 })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "ab", "abc"}
	if len(updates) != len(want) {
		t.Fatalf("expected %d updates, got %d: %v", len(want), len(updates), updates)
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Errorf("update %d = %q, want %q", i, updates[i], want[i])
		}
	}
}

func TestStartIdempotent(t *testing.T) {
	s := NewScheduler(WithTickInterval(time.Millisecond))
	defer s.Stop()

	s.Start()
	s.Start()
	s.Start()

	s.Enqueue("once")
	waitFor(t, 2*time.Second, func() bool { return s.PendingLen() == 0 })

	// A second tick loop would double-release; give it a chance to show.
	time.Sleep(10 * time.Millisecond)
	if got := s.Accumulated(); got != "once" {
		t.Errorf("accumulated = %q, want %q", got, "once")
	}
}

func TestIdleLoopSurvivesEmptyBuffer(t *testing.T) {
	s := NewScheduler(WithTickInterval(time.Millisecond))
	defer s.Stop()

	s.Start()
	time.Sleep(10 * time.Millisecond) // several empty ticks

	s.Enqueue("late")
	waitFor(t, 2*time.Second, func() bool { return s.Accumulated() == "late" })
}

func TestFlushRemaining(t *testing.T) {
	s := NewScheduler(WithTickInterval(time.Hour)) // ticks never fire

	s.Enqueue("never ")
	s.Enqueue("paced")

	if rem := s.FlushRemaining(); rem != "never paced" {
		t.Errorf("remainder = %q, want %q", rem, "never paced")
	}
	if got := s.Accumulated(); got != "never paced" {
		t.Errorf("accumulated = %q, want %q", got, "never paced")
	}
	if s.PendingLen() != 0 {
		t.Error("expected empty buffer after flush")
	}

	// Flushing an empty buffer is a no-op.
	if rem := s.FlushRemaining(); rem != "" {
		t.Errorf("second flush remainder = %q, want empty", rem)
	}
}

func TestDiscardPending(t *testing.T) {
	s := NewScheduler(WithTickInterval(time.Hour))

	s.Enqueue("shown")
	s.FlushRemaining()
	s.Enqueue("hidden")
	s.DiscardPending()

	if got := s.Accumulated(); got != "shown" {
		t.Errorf("accumulated = %q, want %q", got, "shown")
	}
	if s.PendingLen() != 0 {
		t.Error("expected discarded buffer to be empty")
	}
}

func TestReset(t *testing.T) {
	s := NewScheduler(WithTickInterval(time.Hour))

	s.Enqueue("old")
	s.FlushRemaining()
	s.Enqueue("stale")
	s.Reset()

	if got := s.Accumulated(); got != "" {
		t.Errorf("accumulated after reset = %q, want empty", got)
	}
	if s.PendingLen() != 0 {
		t.Error("expected empty buffer after reset")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewScheduler()
	s.Stop() // must not panic
}
