package countdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deletionportal/internal/domain/deletion"
)

type viewRecorder struct {
	mu    sync.Mutex
	views []deletion.View
}

func (r *viewRecorder) render(v deletion.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *viewRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *viewRecorder) first() deletion.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[0]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// TestTicker_RendersImmediatelyThenPeriodically tests the immediate and repeated renders.
func TestTicker_RendersImmediatelyThenPeriodically(t *testing.T) {
	tk := New(5*time.Millisecond, func() time.Time { return now })
	rec := &viewRecorder{}

	tk.Start(now.Add(2*24*time.Hour+12*time.Hour), rec.render)
	defer tk.Stop()

	if rec.count() != 1 {
		t.Fatalf("expected synchronous first render, got %d", rec.count())
	}
	if v := rec.first(); v.DaysRemaining != 2 || !v.ShowCancel {
		t.Errorf("unexpected first view %+v", v)
	}
	waitFor(t, func() bool { return rec.count() >= 3 })
}

// TestTicker_StopHaltsRendering tests that no render happens after Stop returns.
func TestTicker_StopHaltsRendering(t *testing.T) {
	tk := New(2*time.Millisecond, func() time.Time { return now })
	rec := &viewRecorder{}

	tk.Start(now.Add(48*time.Hour), rec.render)
	waitFor(t, func() bool { return rec.count() >= 2 })

	tk.Stop()
	if tk.Running() {
		t.Error("ticker should not be running after Stop")
	}
	stopped := rec.count()
	time.Sleep(20 * time.Millisecond)
	if rec.count() != stopped {
		t.Errorf("render called after Stop: %d -> %d", stopped, rec.count())
	}

	tk.Stop()
}

// TestTicker_StartReplacesPreviousTask tests that only the latest task renders.
func TestTicker_StartReplacesPreviousTask(t *testing.T) {
	tk := New(2*time.Millisecond, func() time.Time { return now })
	old := &viewRecorder{}
	latest := &viewRecorder{}

	tk.Start(now.Add(48*time.Hour), old.render)
	tk.Start(now.Add(96*time.Hour), latest.render)
	defer tk.Stop()

	oldCount := old.count()
	waitFor(t, func() bool { return latest.count() >= 3 })
	if old.count() != oldCount {
		t.Errorf("replaced task kept rendering: %d -> %d", oldCount, old.count())
	}
	if latest.first().DaysRemaining != 4 {
		t.Errorf("expected 4 days, got %d", latest.first().DaysRemaining)
	}
}

// TestTicker_RecoversFromRenderPanic tests that a panicking render does not end the schedule.
func TestTicker_RecoversFromRenderPanic(t *testing.T) {
	tk := New(2*time.Millisecond, func() time.Time { return now })
	var calls atomic.Int32

	tk.Start(now.Add(48*time.Hour), func(deletion.View) {
		calls.Add(1)
		panic("presenter exploded")
	})
	defer tk.Stop()

	waitFor(t, func() bool { return calls.Load() >= 3 })
	if !tk.Running() {
		t.Error("ticker should keep running after a render panic")
	}
}

// TestTicker_ReachesZero tests the terminal view once the deletion date passes.
func TestTicker_ReachesZero(t *testing.T) {
	var mu sync.Mutex
	clock := now
	tk := New(2*time.Millisecond, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	})
	rec := &viewRecorder{}
	tk.Start(now.Add(25*time.Hour), rec.render)
	defer tk.Stop()
	if rec.first().DaysRemaining != 1 {
		t.Fatalf("expected 1 day at start, got %d", rec.first().DaysRemaining)
	}

	mu.Lock()
	clock = now.Add(26 * time.Hour)
	mu.Unlock()

	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		last := rec.views[len(rec.views)-1]
		return last.DaysRemaining == 0 && last.Message == deletion.MessageToday && !last.ShowCancel
	})
}
