package games

import (
	"sync"
	"time"

	"github.com/MJE43/senipy/internal/engine"
	"github.com/MJE43/senipy/internal/schedule"
)

const (
	memoryFlipBack = 1000 * time.Millisecond
	memorySymbols  = "ABCDEFGH"
)

var memorySpec = GameSpec{
	ID:          IDMemory,
	Name:        "Memory Match",
	Description: "Find every matching pair of cards in as few moves as possible.",
	MetricLabel: "moves",
	Actions:     []string{ActionReveal, ActionReset},
}

// Card is one face of the memory deck.
type Card struct {
	ID       int    `json:"id"`
	Symbol   string `json:"symbol,omitempty"`
	Revealed bool   `json:"revealed"`
	Matched  bool   `json:"matched"`
}

// MemoryState is the snapshot of a memory game. Face-down symbols are hidden.
type MemoryState struct {
	Cards    []Card `json:"cards"`
	Moves    int    `json:"moves"`
	Complete bool   `json:"complete"`
	Score    int    `json:"score,omitempty"`
}

// MemoryGame implements pairs matching over a 16 card deck.
type MemoryGame struct {
	mu       sync.Mutex
	clock    schedule.Clock
	rng      engine.Rand
	emit     func(Event)
	cards    []Card
	pending  []int
	moves    int
	complete bool
	flip     schedule.Handle
	closed   bool
}

// NewMemory deals a shuffled deck.
func NewMemory(d Deps) *MemoryGame {
	g := &MemoryGame{clock: d.Clock, rng: d.Rand, emit: d.Emit}
	g.deal()
	return g
}

func (g *MemoryGame) Spec() GameSpec { return memorySpec }

func (g *MemoryGame) deal() {
	symbols := make([]string, 0, 2*len(memorySymbols))
	for _, r := range memorySymbols {
		symbols = append(symbols, string(r), string(r))
	}
	shuffle(g.rng, symbols)

	g.cards = make([]Card, len(symbols))
	for i, s := range symbols {
		g.cards[i] = Card{ID: i, Symbol: s}
	}
	g.pending = nil
	g.moves = 0
	g.complete = false
}

func (g *MemoryGame) Act(a Action) error {
	switch a.Type {
	case ActionReveal:
		return g.Reveal(a.Card)
	case ActionReset:
		return g.Reset()
	default:
		return ErrUnknownAction
	}
}

// Reveal turns card index face-up. Invalid reveals are ignored.
func (g *MemoryGame) Reveal(index int) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.complete || len(g.pending) == 2 || index < 0 || index >= len(g.cards) {
		g.mu.Unlock()
		return nil
	}
	card := &g.cards[index]
	if card.Matched || card.Revealed {
		g.mu.Unlock()
		return nil
	}

	card.Revealed = true
	g.pending = append(g.pending, index)

	var events []Event
	if len(g.pending) == 2 {
		g.moves++
		first, second := &g.cards[g.pending[0]], &g.cards[g.pending[1]]
		if first.Symbol == second.Symbol {
			first.Matched = true
			second.Matched = true
			g.pending = nil
			if g.allMatched() {
				g.complete = true
				events = append(events, Event{Kind: EventScore, Game: IDMemory, Score: MemoryScore(g.moves)})
			}
		} else {
			pair := [2]int{g.pending[0], g.pending[1]}
			g.flip = g.clock.AfterFunc(memoryFlipBack, func() { g.flipBack(pair) })
		}
	}
	g.mu.Unlock()

	emitAll(g.emit, events)
	return nil
}

func (g *MemoryGame) flipBack(pair [2]int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || len(g.pending) != 2 || g.pending[0] != pair[0] || g.pending[1] != pair[1] {
		return
	}
	g.cards[pair[0]].Revealed = false
	g.cards[pair[1]].Revealed = false
	g.pending = nil
	g.flip = nil
}

func (g *MemoryGame) allMatched() bool {
	for _, c := range g.cards {
		if !c.Matched {
			return false
		}
	}
	return true
}

// Reset cancels any pending flip-back and deals a fresh deck.
func (g *MemoryGame) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.stopFlip()
	g.deal()
	return nil
}

func (g *MemoryGame) stopFlip() {
	if g.flip != nil {
		g.flip.Stop()
		g.flip = nil
	}
}

func (g *MemoryGame) State() any {
	g.mu.Lock()
	defer g.mu.Unlock()

	cards := make([]Card, len(g.cards))
	for i, c := range g.cards {
		if !c.Revealed && !c.Matched {
			c.Symbol = ""
		}
		cards[i] = c
	}
	st := MemoryState{Cards: cards, Moves: g.moves, Complete: g.complete}
	if g.complete {
		st.Score = MemoryScore(g.moves)
	}
	return st
}

func (g *MemoryGame) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopFlip()
}
