package narrator

import (
	"sync"
	"time"
)

// DefaultLoadingInterval is the label rotation cadence used when none is
// configured.
const DefaultLoadingInterval = 450 * time.Millisecond

// loadingLabels are the short status words cycled while the first
// fragment is still in flight. Purely cosmetic.
var loadingLabels = []string{
	"Listening",
	"Stirring",
	"Unfolding",
	"Gathering",
	"Weighing",
}

// loadingTicker rotates through the label list at a fixed interval until
// stopped. Start and Stop are idempotent.
type loadingTicker struct {
	mu       sync.Mutex
	running  bool
	stopc    chan struct{}
	interval time.Duration
	notify   func(label string)
}

func newLoadingTicker(interval time.Duration, notify func(label string)) *loadingTicker {
	if interval <= 0 {
		interval = DefaultLoadingInterval
	}
	return &loadingTicker{interval: interval, notify: notify}
}

// Start begins rotation from the first label. Restarting a running ticker
// is a no-op.
func (l *loadingTicker) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopc = make(chan struct{})
	stopc := l.stopc
	l.mu.Unlock()

	if l.notify != nil {
		l.notify(loadingLabels[0])
	}
	go l.loop(stopc)
}

// Stop halts rotation. The last emitted label stays on screen until the
// presentation layer replaces it.
func (l *loadingTicker) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	close(l.stopc)
}

func (l *loadingTicker) loop(stopc chan struct{}) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	next := 1
	for {
		select {
		case <-stopc:
			return
		case <-ticker.C:
			if l.notify != nil {
				l.notify(loadingLabels[next%len(loadingLabels)])
			}
			next++
		}
	}
}
