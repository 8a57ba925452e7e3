package games

import (
	"testing"
	"time"

	"github.com/MJE43/senipy/internal/schedule"
)

func newTestReaction(clock schedule.Clock, log *eventLog) *ReactionGame {
	return NewReaction(Deps{Clock: clock, Rand: fixedRand{v: 0}, Emit: log.emit})
}

func TestReactionTooEarly(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	log := &eventLog{}
	g := newTestReaction(clock, log)

	g.Start()
	if g.State().(ReactionState).Phase != PhaseWaiting {
		t.Fatal("expected waiting")
	}
	g.Click()

	st := g.State().(ReactionState)
	if st.Phase != PhaseTooEarly {
		t.Errorf("expected tooEarly, got %s", st.Phase)
	}
	if len(st.Attempts) != 0 || len(log.all()) != 0 {
		t.Error("early click must not record anything")
	}
	if clock.Pending() != 0 {
		t.Error("early click must cancel the pending transition")
	}

	clock.Advance(10 * time.Second)
	if g.State().(ReactionState).Phase != PhaseTooEarly {
		t.Error("cancelled transition fired")
	}
}

func TestReactionClickRecordsBest(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	log := &eventLog{}
	g := newTestReaction(clock, log)

	g.Start()
	clock.Advance(999 * time.Millisecond)
	if g.State().(ReactionState).Phase != PhaseWaiting {
		t.Fatal("ready too early")
	}
	clock.Advance(time.Millisecond)
	if g.State().(ReactionState).Phase != PhaseReady {
		t.Fatal("expected ready after the minimum delay")
	}

	clock.Advance(250 * time.Millisecond)
	g.Click()

	st := g.State().(ReactionState)
	if st.Phase != PhaseClicked || st.Last != 250 || st.Best != 250 {
		t.Errorf("unexpected state: %+v", st)
	}
	events := log.all()
	if len(events) != 1 || events[0].Kind != EventBestReaction || events[0].ReactionMS != 250 || events[0].Score != 50 {
		t.Fatalf("unexpected events: %+v", events)
	}

	// Slower attempt: averaged, not a new best.
	g.Act(Action{Type: ActionTryAgain})
	clock.Advance(time.Second)
	clock.Advance(301 * time.Millisecond)
	g.Click()

	st = g.State().(ReactionState)
	if st.Best != 250 || st.Average != 276 {
		t.Errorf("expected best 250 avg 276, got %+v", st)
	}
	if len(log.all()) != 1 {
		t.Error("slower attempt must not persist")
	}

	// Clicks in clicked are no-ops.
	g.Click()
	if len(g.State().(ReactionState).Attempts) != 2 {
		t.Error("click after clicked should be ignored")
	}
}

func TestReactionMaxDelay(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	g := NewReaction(Deps{Clock: clock, Rand: fixedRand{v: 1 << 30}, Emit: func(Event) {}})

	g.Start()
	clock.Advance(4998 * time.Millisecond)
	if g.State().(ReactionState).Phase != PhaseWaiting {
		t.Fatal("ready before the drawn delay")
	}
	clock.Advance(time.Millisecond)
	if g.State().(ReactionState).Phase != PhaseReady {
		t.Fatal("delay should stay below 5000ms")
	}
}

func TestReactionIdleClick(t *testing.T) {
	g := newTestReaction(schedule.NewManual(testEpoch), &eventLog{})
	g.Click()
	if g.State().(ReactionState).Phase != PhaseIdle {
		t.Error("click in idle should be a no-op")
	}
}

func TestReactionPersistedBest(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	log := &eventLog{}
	g := NewReaction(Deps{Clock: clock, Rand: fixedRand{}, Emit: log.emit, BestReaction: 200, HasBestReaction: true})

	g.Start()
	clock.Advance(time.Second + 220*time.Millisecond)
	g.Click()

	if len(log.all()) != 0 {
		t.Error("slower than persisted best should not emit")
	}
	if st := g.State().(ReactionState); st.Best != 200 {
		t.Errorf("expected best to stay 200, got %d", st.Best)
	}
}

func TestReactionStaleTimerAfterTryAgain(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	g := newTestReaction(clock, &eventLog{})

	g.Start()
	stale := g.armed
	g.Click()
	g.Act(Action{Type: ActionTryAgain})

	// The first attempt's timer fired while the early click held the lock.
	g.becomeReady(stale)
	if ph := g.State().(ReactionState).Phase; ph != PhaseWaiting {
		t.Fatalf("stale timer showed the stimulus early: %s", ph)
	}

	clock.Advance(time.Second)
	if ph := g.State().(ReactionState).Phase; ph != PhaseReady {
		t.Errorf("expected ready after the new delay, got %s", ph)
	}
}
