package games

import (
	"math"
	"sync"
	"time"

	"github.com/MJE43/senipy/internal/engine"
	"github.com/MJE43/senipy/internal/schedule"
)

// Reaction delay window: uniform in [reactionMinDelay, reactionMinDelay+reactionDelaySpan) ms.
const (
	reactionMinDelay  = 1000
	reactionDelaySpan = 4000
)

// ReactionPhase is the state of a reaction attempt.
type ReactionPhase string

const (
	PhaseIdle     ReactionPhase = "idle"
	PhaseWaiting  ReactionPhase = "waiting"
	PhaseReady    ReactionPhase = "ready"
	PhaseClicked  ReactionPhase = "clicked"
	PhaseTooEarly ReactionPhase = "tooEarly"
)

var reactionSpec = GameSpec{
	ID:          IDReaction,
	Name:        "Reaction Timer",
	Description: "Click as soon as the screen turns green.",
	MetricLabel: "milliseconds",
	Actions:     []string{ActionStart, ActionClick, ActionTryAgain},
}

// ReactionState is the snapshot of a reaction game.
type ReactionState struct {
	Phase    ReactionPhase `json:"phase"`
	Last     int           `json:"last_ms,omitempty"`
	Attempts []int         `json:"attempts"`
	Average  int           `json:"average_ms,omitempty"`
	Best     int           `json:"best_ms,omitempty"`
	HasBest  bool          `json:"has_best"`
}

// ReactionGame measures the delay between the stimulus and the click.
type ReactionGame struct {
	mu       sync.Mutex
	clock    schedule.Clock
	rng      engine.Rand
	emit     func(Event)
	phase    ReactionPhase
	readyAt  time.Time
	pending  schedule.Handle
	armed    int
	attempts []int
	last     int
	best     int
	hasBest  bool
	closed   bool
}

// NewReaction returns an idle game seeded with any persisted best.
func NewReaction(d Deps) *ReactionGame {
	return &ReactionGame{
		clock:    d.Clock,
		rng:      d.Rand,
		emit:     d.Emit,
		phase:    PhaseIdle,
		attempts: []int{},
		best:     d.BestReaction,
		hasBest:  d.HasBestReaction,
	}
}

func (g *ReactionGame) Spec() GameSpec { return reactionSpec }

func (g *ReactionGame) Act(a Action) error {
	switch a.Type {
	case ActionStart, ActionTryAgain:
		return g.Start()
	case ActionClick:
		return g.Click()
	default:
		return ErrUnknownAction
	}
}

// Start arms a new attempt. It is ignored while an attempt is in flight.
func (g *ReactionGame) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.phase == PhaseWaiting || g.phase == PhaseReady {
		return nil
	}
	g.phase = PhaseWaiting
	g.armed++
	armed := g.armed
	delay := time.Duration(reactionMinDelay+g.rng.Intn(reactionDelaySpan)) * time.Millisecond
	g.pending = g.clock.AfterFunc(delay, func() { g.becomeReady(armed) })
	return nil
}

// becomeReady shows the stimulus for the attempt numbered armed. A timer
// from an abandoned attempt is ignored.
func (g *ReactionGame) becomeReady(armed int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.phase != PhaseWaiting || armed != g.armed {
		return
	}
	g.phase = PhaseReady
	g.readyAt = g.clock.Now()
	g.pending = nil
}

// Click reacts to the stimulus. Clicking before it is shown is too early.
func (g *ReactionGame) Click() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}

	var events []Event
	switch g.phase {
	case PhaseWaiting:
		g.stopPending()
		g.phase = PhaseTooEarly
	case PhaseReady:
		ms := int(g.clock.Now().Sub(g.readyAt).Milliseconds())
		if ms < 0 {
			ms = 0
		}
		g.phase = PhaseClicked
		g.last = ms
		g.attempts = append(g.attempts, ms)
		if !g.hasBest || ms < g.best {
			g.best = ms
			g.hasBest = true
			events = append(events, Event{Kind: EventBestReaction, Game: IDReaction, ReactionMS: ms, Score: ReactionScore(ms)})
		}
	}
	g.mu.Unlock()

	emitAll(g.emit, events)
	return nil
}

func (g *ReactionGame) average() int {
	if len(g.attempts) == 0 {
		return 0
	}
	sum := 0
	for _, a := range g.attempts {
		sum += a
	}
	return int(math.Round(float64(sum) / float64(len(g.attempts))))
}

func (g *ReactionGame) stopPending() {
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}

func (g *ReactionGame) State() any {
	g.mu.Lock()
	defer g.mu.Unlock()
	attempts := make([]int, len(g.attempts))
	copy(attempts, g.attempts)
	return ReactionState{
		Phase:    g.phase,
		Last:     g.last,
		Attempts: attempts,
		Average:  g.average(),
		Best:     g.best,
		HasBest:  g.hasBest,
	}
}

func (g *ReactionGame) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopPending()
}
