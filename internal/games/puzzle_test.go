package games

import (
	"testing"

	"github.com/MJE43/senipy/internal/engine"
)

// solvable reports whether the board has an even inversion count, which for
// an odd-width grid means it is reachable from the solved board.
func solvable(tiles [puzzleTiles]int) bool {
	inversions := 0
	for i := 0; i < puzzleTiles; i++ {
		for j := i + 1; j < puzzleTiles; j++ {
			if tiles[i] != puzzleEmpty && tiles[j] != puzzleEmpty && tiles[i] > tiles[j] {
				inversions++
			}
		}
	}
	return inversions%2 == 0
}

func TestPuzzleScrambleIsSolvable(t *testing.T) {
	for i := 0; i < 50; i++ {
		r := engine.NewStream(engine.Seeds{Server: "puzzle", Client: string(rune('a' + i))})
		g := NewPuzzle(Deps{Rand: r, Emit: func(Event) {}})

		if isSolved(g.tiles) {
			t.Fatal("scramble produced a solved board")
		}
		if !solvable(g.tiles) {
			t.Fatalf("unsolvable board: %v", g.tiles)
		}
		seen := make(map[int]bool)
		for _, v := range g.tiles {
			seen[v] = true
		}
		if len(seen) != puzzleTiles {
			t.Fatalf("board is not a permutation: %v", g.tiles)
		}
	}
}

func TestPuzzleAdjacency(t *testing.T) {
	tests := []struct {
		a, b int
		want bool
	}{
		{0, 1, true},
		{0, 3, true},
		{4, 1, true},
		{4, 7, true},
		{2, 3, false}, // no wraparound
		{5, 6, false},
		{0, 4, false},
		{0, 0, false},
		{8, 5, true},
	}
	for _, tt := range tests {
		if got := adjacent(tt.a, tt.b); got != tt.want {
			t.Errorf("adjacent(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPuzzleEightMovesScoresSeventySix(t *testing.T) {
	log := &eventLog{}
	g := NewPuzzle(Deps{Rand: fixedRand{}, Emit: log.emit})

	// Walk the empty slot along a path from the solved board, then undo it.
	path := []int{8, 7, 6, 3, 4, 5, 2, 1, 0}
	board := solvedBoard()
	for i := 1; i < len(path); i++ {
		board[path[i-1]], board[path[i]] = board[path[i]], board[path[i-1]]
	}
	g.tiles = board
	g.moves = 0

	for i := len(path) - 2; i >= 0; i-- {
		g.Move(path[i])
	}

	st := g.State().(PuzzleState)
	if !st.Complete {
		t.Fatalf("expected solved board, got %v", st.Tiles)
	}
	if st.Moves != 8 || st.Score != 76 {
		t.Errorf("expected 8 moves scoring 76, got %d moves scoring %d", st.Moves, st.Score)
	}
	events := log.all()
	if len(events) != 1 || events[0].Score != 76 || events[0].Game != IDPuzzle {
		t.Errorf("unexpected events: %+v", events)
	}

	// Moves after completion are ignored.
	g.Move(7)
	if g.State().(PuzzleState).Moves != 8 {
		t.Error("move after completion should be a no-op")
	}
}

func TestPuzzleNonAdjacentMove(t *testing.T) {
	g := NewPuzzle(Deps{Rand: fixedRand{}, Emit: func(Event) {}})
	g.tiles = [puzzleTiles]int{1, 2, 3, 4, 5, 6, 7, 0, 8}
	before := g.tiles

	for _, pos := range []int{0, 2, -1, 9} {
		g.Move(pos)
	}
	if g.tiles != before || g.moves != 0 {
		t.Errorf("non-adjacent moves changed the board: %v", g.tiles)
	}

	g.Move(8)
	if !g.complete || g.moves != 1 {
		t.Errorf("expected single-move solve, got complete=%v moves=%d", g.complete, g.moves)
	}
}
