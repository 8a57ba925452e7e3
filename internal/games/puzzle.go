package games

import (
	"sync"

	"github.com/MJE43/senipy/internal/engine"
)

const (
	puzzleSize        = 3
	puzzleTiles       = puzzleSize * puzzleSize
	puzzleEmpty       = 0
	puzzleScrambleOps = 100
)

var puzzleSpec = GameSpec{
	ID:          IDPuzzle,
	Name:        "Sliding Puzzle",
	Description: "Slide the tiles back into order from 1 to 8.",
	MetricLabel: "moves",
	Actions:     []string{ActionMove, ActionReset},
}

// PuzzleState is the snapshot of a sliding puzzle. Tile 0 is the empty slot.
type PuzzleState struct {
	Tiles    [puzzleTiles]int `json:"tiles"`
	Moves    int              `json:"moves"`
	Complete bool             `json:"complete"`
	Score    int              `json:"score,omitempty"`
}

// PuzzleGame is a 3x3 N-puzzle.
type PuzzleGame struct {
	mu       sync.Mutex
	rng      engine.Rand
	emit     func(Event)
	tiles    [puzzleTiles]int
	moves    int
	complete bool
	closed   bool
}

// NewPuzzle returns a scrambled board.
func NewPuzzle(d Deps) *PuzzleGame {
	g := &PuzzleGame{rng: d.Rand, emit: d.Emit}
	g.scramble()
	return g
}

func (g *PuzzleGame) Spec() GameSpec { return puzzleSpec }

// scramble walks the empty slot through random legal moves from the solved
// board, so the result is always solvable.
func (g *PuzzleGame) scramble() {
	for {
		g.tiles = solvedBoard()
		empty := puzzleTiles - 1
		for i := 0; i < puzzleScrambleOps; i++ {
			next := neighbours(empty)
			to := next[g.rng.Intn(len(next))]
			g.tiles[empty], g.tiles[to] = g.tiles[to], g.tiles[empty]
			empty = to
		}
		if !isSolved(g.tiles) {
			break
		}
	}
	g.moves = 0
	g.complete = false
}

func (g *PuzzleGame) Act(a Action) error {
	switch a.Type {
	case ActionMove:
		return g.Move(a.Position)
	case ActionReset:
		return g.Reset()
	default:
		return ErrUnknownAction
	}
}

// Move slides the tile at position into the empty slot when they are
// adjacent. Anything else is a no-op.
func (g *PuzzleGame) Move(position int) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.complete || position < 0 || position >= puzzleTiles {
		g.mu.Unlock()
		return nil
	}
	empty := g.emptyIndex()
	if !adjacent(position, empty) {
		g.mu.Unlock()
		return nil
	}

	g.tiles[position], g.tiles[empty] = g.tiles[empty], g.tiles[position]
	g.moves++

	var events []Event
	if isSolved(g.tiles) {
		g.complete = true
		events = append(events, Event{Kind: EventScore, Game: IDPuzzle, Score: PuzzleScore(g.moves)})
	}
	g.mu.Unlock()

	emitAll(g.emit, events)
	return nil
}

// Reset scrambles a new board.
func (g *PuzzleGame) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.scramble()
	return nil
}

func (g *PuzzleGame) emptyIndex() int {
	for i, v := range g.tiles {
		if v == puzzleEmpty {
			return i
		}
	}
	return -1
}

func (g *PuzzleGame) State() any {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := PuzzleState{Tiles: g.tiles, Moves: g.moves, Complete: g.complete}
	if g.complete {
		st.Score = PuzzleScore(g.moves)
	}
	return st
}

func (g *PuzzleGame) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func solvedBoard() [puzzleTiles]int {
	var b [puzzleTiles]int
	for i := 0; i < puzzleTiles-1; i++ {
		b[i] = i + 1
	}
	b[puzzleTiles-1] = puzzleEmpty
	return b
}

func isSolved(tiles [puzzleTiles]int) bool {
	return tiles == solvedBoard()
}

// adjacent reports whether a and b are one row or column step apart.
func adjacent(a, b int) bool {
	if a < 0 || b < 0 {
		return false
	}
	ar, ac := a/puzzleSize, a%puzzleSize
	br, bc := b/puzzleSize, b%puzzleSize
	dr, dc := ar-br, ac-bc
	return (dr == 0 && (dc == 1 || dc == -1)) || (dc == 0 && (dr == 1 || dr == -1))
}

func neighbours(pos int) []int {
	out := make([]int, 0, 4)
	for _, p := range []int{pos - puzzleSize, pos + puzzleSize, pos - 1, pos + 1} {
		if p >= 0 && p < puzzleTiles && adjacent(pos, p) {
			out = append(out, p)
		}
	}
	return out
}
