package games

import (
	"strings"
	"sync"
	"time"

	"github.com/MJE43/senipy/internal/engine"
	"github.com/MJE43/senipy/internal/schedule"
)

const (
	wordRoundSeconds = 30
	wordPoints       = 10
)

// Words is the fixed scramble vocabulary.
var Words = []string{
	"APPLE", "BREAD", "CHAIR", "DANCE", "EAGLE", "FRUIT",
	"GRASS", "HOUSE", "IMAGE", "JUICE", "KNIFE", "LEMON",
}

var wordSpec = GameSpec{
	ID:          IDWord,
	Name:        "Word Scramble",
	Description: "Unscramble as many words as you can in 30 seconds.",
	MetricLabel: "points",
	Actions:     []string{ActionStart, ActionGuess, ActionSkip},
}

// WordState is the snapshot of a word scramble round. The answer is never exposed.
type WordState struct {
	Active     bool   `json:"active"`
	Scrambled  string `json:"scrambled,omitempty"`
	Points     int    `json:"points"`
	TimeLeft   int    `json:"time_left"`
	Feedback   string `json:"feedback,omitempty"`
	Ended      bool   `json:"ended"`
	FinalScore int    `json:"final_score"`
}

// WordGame runs a timed unscramble round.
type WordGame struct {
	mu        sync.Mutex
	clock     schedule.Clock
	rng       engine.Rand
	emit      func(Event)
	active    bool
	ended     bool
	word      string
	scrambled string
	points    int
	timeLeft  int
	feedback  string
	tick      schedule.Handle
	round     int
	closed    bool
}

// NewWord returns an inactive round.
func NewWord(d Deps) *WordGame {
	return &WordGame{clock: d.Clock, rng: d.Rand, emit: d.Emit, timeLeft: wordRoundSeconds}
}

func (g *WordGame) Spec() GameSpec { return wordSpec }

func (g *WordGame) Act(a Action) error {
	switch a.Type {
	case ActionStart:
		return g.Start()
	case ActionGuess:
		_, err := g.Guess(a.Guess)
		return err
	case ActionSkip:
		return g.Skip()
	default:
		return ErrUnknownAction
	}
}

// Start begins a new round, restarting the countdown if one is running.
func (g *WordGame) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.stopTick()
	g.points = 0
	g.timeLeft = wordRoundSeconds
	g.active = true
	g.ended = false
	g.feedback = ""
	g.nextWord()
	g.round++
	round := g.round
	g.tick = g.clock.Every(time.Second, func() { g.countdown(round) })
	return nil
}

// Guess checks guess against the current word ignoring case and surrounding
// whitespace. It reports whether the guess was correct.
func (g *WordGame) Guess(guess string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false, ErrClosed
	}
	if !g.active {
		return false, ErrNotActive
	}
	if !strings.EqualFold(strings.TrimSpace(guess), g.word) {
		g.feedback = "Try again!"
		return false, nil
	}
	g.points += wordPoints
	g.feedback = "Correct!"
	g.nextWord()
	return true, nil
}

// Skip moves to a new word without scoring.
func (g *WordGame) Skip() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if !g.active {
		return ErrNotActive
	}
	g.feedback = ""
	g.nextWord()
	return nil
}

// countdown ticks the timer of the given round. Ticks left over from a
// restarted round are dropped.
func (g *WordGame) countdown(round int) {
	g.mu.Lock()
	if g.closed || !g.active || round != g.round {
		g.mu.Unlock()
		return
	}
	g.timeLeft--
	var events []Event
	if g.timeLeft <= 0 {
		g.timeLeft = 0
		g.active = false
		g.ended = true
		g.feedback = ""
		g.stopTick()
		events = append(events, Event{Kind: EventScore, Game: IDWord, Score: WordScore(g.points)})
	}
	g.mu.Unlock()

	emitAll(g.emit, events)
}

func (g *WordGame) nextWord() {
	g.word = Words[g.rng.Intn(len(Words))]
	g.scrambled = Scramble(g.rng, g.word)
}

func (g *WordGame) stopTick() {
	if g.tick != nil {
		g.tick.Stop()
		g.tick = nil
	}
}

func (g *WordGame) State() any {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := WordState{
		Active:   g.active,
		Points:   g.points,
		TimeLeft: g.timeLeft,
		Feedback: g.feedback,
		Ended:    g.ended,
	}
	if g.active {
		st.Scrambled = g.scrambled
	}
	if g.ended {
		st.FinalScore = g.points
	}
	return st
}

func (g *WordGame) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.active = false
	g.stopTick()
}

// Scramble permutes the letters of word. Words that can be rearranged are
// never returned unchanged.
func Scramble(r engine.Rand, word string) string {
	letters := []rune(word)
	if !canScramble(letters) {
		return word
	}
	for {
		shuffle(r, letters)
		if s := string(letters); s != word {
			return s
		}
	}
}

func canScramble(letters []rune) bool {
	for _, l := range letters[min(1, len(letters)):] {
		if l != letters[0] {
			return true
		}
	}
	return false
}
