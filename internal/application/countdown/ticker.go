package countdown

import (
	"log/slog"
	"sync"
	"time"

	"deletionportal/internal/domain/deletion"
	"deletionportal/internal/metrics"
)

// DefaultInterval is how often a running countdown re-derives its view.
const DefaultInterval = time.Minute

// RenderFunc receives every derived countdown view.
type RenderFunc func(v deletion.View)

// Ticker re-derives a pending request's countdown from its deletion date on
// a fixed interval. It never fetches; the date is held in memory.
// A Ticker runs at most one task at a time.
type Ticker struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New creates a stopped Ticker. A non-positive interval uses DefaultInterval; a nil now uses time.Now.
func New(interval time.Duration, now func() time.Time) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Ticker{interval: interval, now: now}
}

// Start renders the countdown for deletionDate immediately and then once per interval.
// Any task already running is stopped first.
// POST: Exactly one task is running; render has been called once before Start returns
func (t *Ticker) Start(deletionDate time.Time, render RenderFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.tick(deletionDate, render)

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	metrics.CountdownStarted()

	go t.run(deletionDate, render, stop, done)
}

// Stop cancels the running task, if any, and waits for it to exit. Safe to call repeatedly.
// POST: No task is running and render will not be called again
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Running reports whether a task is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Ticker) stopLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
	metrics.CountdownStopped()
}

func (t *Ticker) run(deletionDate time.Time, render RenderFunc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			t.tick(deletionDate, render)
		case <-stop:
			return
		}
	}
}

// tick derives and renders one view. A panicking render is logged and the schedule continues.
func (t *Ticker) tick(deletionDate time.Time, render RenderFunc) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("countdown_render_panic", "panic", r, "deletion_date", deletionDate)
			metrics.CountdownPanic()
		}
	}()
	metrics.CountdownTick()
	render(deletion.Tick(deletionDate, t.now()))
}
