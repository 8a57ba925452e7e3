// Package schedule provides cancellable one-shot and repeating timers behind a
// Clock interface so game state machines can be driven deterministically in tests.
package schedule

import (
	"sync"
	"time"
)

// Handle cancels a scheduled task.
type Handle interface {
	// Stop cancels the task. It reports whether the call prevented a pending
	// run. Calling Stop more than once is safe.
	Stop() bool
}

// Clock schedules work relative to its own notion of now.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Handle
	Every(d time.Duration, f func()) Handle
}

// System returns a Clock backed by the runtime timers.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Handle {
	return &timerHandle{t: time.AfterFunc(d, f)}
}

func (systemClock) Every(d time.Duration, f func()) Handle {
	h := &tickerHandle{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				// A tick racing with Stop must not run.
				select {
				case <-h.done:
					return
				default:
				}
				f()
			}
		}
	}()
	return h
}

type timerHandle struct {
	t *time.Timer
}

func (h *timerHandle) Stop() bool { return h.t.Stop() }

type tickerHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *tickerHandle) Stop() bool {
	stopped := false
	h.once.Do(func() {
		close(h.done)
		stopped = true
	})
	return stopped
}

// Group stops a set of handles together. Handles added after Stop are
// stopped immediately.
type Group struct {
	mu      sync.Mutex
	handles []Handle
	stopped bool
}

// Add tracks h and returns it.
func (g *Group) Add(h Handle) Handle {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		h.Stop()
		return h
	}
	g.handles = append(g.handles, h)
	g.mu.Unlock()
	return h
}

// Stop cancels every tracked handle.
func (g *Group) Stop() {
	g.mu.Lock()
	handles := g.handles
	g.handles = nil
	g.stopped = true
	g.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}
