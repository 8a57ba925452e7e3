package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualAfterFunc(t *testing.T) {
	clock := NewManual(epoch)
	fired := 0
	clock.AfterFunc(time.Second, func() { fired++ })

	clock.Advance(999 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired early: %d", fired)
	}
	clock.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("expected 1 run, got %d", fired)
	}
	clock.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("one-shot ran again: %d", fired)
	}
	if clock.Pending() != 0 {
		t.Errorf("expected no pending tasks, got %d", clock.Pending())
	}
}

func TestManualStopIsIdempotent(t *testing.T) {
	clock := NewManual(epoch)
	fired := false
	h := clock.AfterFunc(time.Second, func() { fired = true })

	if !h.Stop() {
		t.Error("first Stop should report it prevented the run")
	}
	if h.Stop() {
		t.Error("second Stop should report false")
	}
	clock.Advance(2 * time.Second)
	if fired {
		t.Error("stopped task ran")
	}
}

func TestManualEvery(t *testing.T) {
	clock := NewManual(epoch)
	ticks := 0
	var h Handle
	h = clock.Every(time.Second, func() {
		ticks++
		if ticks == 3 {
			h.Stop()
		}
	})

	clock.Advance(10 * time.Second)
	if ticks != 3 {
		t.Errorf("expected 3 ticks, got %d", ticks)
	}
}

func TestManualOrder(t *testing.T) {
	clock := NewManual(epoch)
	var order []int
	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clock.AfterFunc(time.Second, func() { order = append(order, 1) })
	clock.AfterFunc(2*time.Second, func() {
		order = append(order, 2)
		if got := clock.Now().Sub(epoch); got != 2*time.Second {
			t.Errorf("now inside callback = %v, want 2s", got)
		}
	})

	clock.Advance(5 * time.Second)
	want := []int{1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestGroupStop(t *testing.T) {
	clock := NewManual(epoch)
	var g Group
	fired := 0
	g.Add(clock.AfterFunc(time.Second, func() { fired++ }))
	g.Add(clock.Every(time.Second, func() { fired++ }))

	g.Stop()
	clock.Advance(5 * time.Second)
	if fired != 0 {
		t.Errorf("expected nothing to run after Stop, got %d", fired)
	}

	late := clock.AfterFunc(time.Second, func() { fired++ })
	g.Add(late)
	clock.Advance(5 * time.Second)
	if fired != 0 {
		t.Errorf("handle added after Stop still ran")
	}
}

func TestSystemAfterFuncStop(t *testing.T) {
	var fired atomic.Bool
	h := System().AfterFunc(time.Hour, func() { fired.Store(true) })
	if !h.Stop() {
		t.Error("expected Stop to cancel pending timer")
	}
	if h.Stop() {
		t.Error("second Stop should report false")
	}
}

func TestSystemEveryStops(t *testing.T) {
	var ticks atomic.Int32
	done := make(chan struct{})
	h := System().Every(5*time.Millisecond, func() {
		if ticks.Add(1) == 2 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker never fired")
	}
	if !h.Stop() {
		t.Error("first Stop should report true")
	}
	if h.Stop() {
		t.Error("second Stop should report false")
	}
}
