package games

import (
	"errors"
	"math"
	"sort"

	"github.com/MJE43/senipy/internal/engine"
	"github.com/MJE43/senipy/internal/schedule"
)

// Game ids. These are also the keys of the persisted score record.
const (
	IDMemory   = "memory"
	IDWord     = "word"
	IDPuzzle   = "puzzle"
	IDReaction = "reaction"
)

var (
	ErrUnknownGame     = errors.New("unknown game")
	ErrUnknownAction   = errors.New("unknown action")
	ErrNotActive       = errors.New("game is not active")
	ErrSessionNotFound = errors.New("game session not found")
	ErrClosed          = errors.New("game session closed")
)

// GameSpec describes a game for listings.
type GameSpec struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MetricLabel string   `json:"metric_label"`
	Actions     []string `json:"actions"`
}

// Action is a player input. Only the fields relevant to Type are read.
type Action struct {
	Type     string `json:"type"`
	Card     int    `json:"card,omitempty"`
	Position int    `json:"position,omitempty"`
	Guess    string `json:"guess,omitempty"`
}

// Action types.
const (
	ActionReveal   = "reveal"
	ActionStart    = "start"
	ActionGuess    = "guess"
	ActionSkip     = "skip"
	ActionMove     = "move"
	ActionClick    = "click"
	ActionTryAgain = "try_again"
	ActionReset    = "reset"
)

// EventKind tells the score sink what a game reported.
type EventKind int

const (
	// EventScore carries a final score for Game.
	EventScore EventKind = iota
	// EventBestReaction carries a new best reaction time and its score.
	EventBestReaction
)

// Event is emitted by a game outside its lock.
type Event struct {
	Kind       EventKind
	Game       string
	Score      int
	ReactionMS int
}

// Game is a live, server-authoritative game instance.
type Game interface {
	Spec() GameSpec
	Act(a Action) error
	// State returns a JSON-friendly copy of the current state.
	State() any
	// Close cancels pending timers. Actions after Close fail with ErrClosed.
	Close()
}

// Deps are the collaborators a game is built with.
type Deps struct {
	Clock schedule.Clock
	Rand  engine.Rand
	Emit  func(Event)

	// BestReaction seeds the reaction game with a persisted best.
	BestReaction    int
	HasBestReaction bool
}

type factory struct {
	spec GameSpec
	new  func(Deps) Game
}

var registry = map[string]factory{}

func register(spec GameSpec, fn func(Deps) Game) {
	registry[spec.ID] = factory{spec: spec, new: fn}
}

func init() {
	register(memorySpec, func(d Deps) Game { return NewMemory(d) })
	register(wordSpec, func(d Deps) Game { return NewWord(d) })
	register(puzzleSpec, func(d Deps) Game { return NewPuzzle(d) })
	register(reactionSpec, func(d Deps) Game { return NewReaction(d) })
}

// GetSpec returns the spec for id.
func GetSpec(id string) (GameSpec, bool) {
	f, ok := registry[id]
	return f.spec, ok
}

// ListSpecs returns all registered specs sorted by id.
func ListSpecs() []GameSpec {
	specs := make([]GameSpec, 0, len(registry))
	for _, f := range registry {
		specs = append(specs, f.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// Known reports whether id names a registered game.
func Known(id string) bool {
	_, ok := registry[id]
	return ok
}

// New builds a fresh instance of game id.
func New(id string, d Deps) (Game, error) {
	f, ok := registry[id]
	if !ok {
		return nil, ErrUnknownGame
	}
	if d.Clock == nil {
		d.Clock = schedule.System()
	}
	if d.Rand == nil {
		d.Rand = engine.NewRandomStream()
	}
	if d.Emit == nil {
		d.Emit = func(Event) {}
	}
	return f.new(d), nil
}

// MemoryScore is max(0, 100 - 2*moves).
func MemoryScore(moves int) int {
	return max(0, 100-2*moves)
}

// PuzzleScore is max(0, 100 - 3*moves).
func PuzzleScore(moves int) int {
	return max(0, 100-3*moves)
}

// ReactionScore is round(max(0, 100 - ms/5)).
func ReactionScore(ms int) int {
	return int(math.Round(math.Max(0, 100-float64(ms)/5)))
}

// WordScore caps the accumulated points at 100.
func WordScore(points int) int {
	return min(100, max(0, points))
}

func emitAll(emit func(Event), events []Event) {
	for _, ev := range events {
		emit(ev)
	}
}

// shuffle is an in-place Fisher-Yates driven by r.
func shuffle[T any](r engine.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
