package games

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/MJE43/senipy/internal/engine"
	"github.com/MJE43/senipy/internal/schedule"
)

func sortedLetters(s string) string {
	r := strings.Split(s, "")
	sort.Strings(r)
	return strings.Join(r, "")
}

func TestScrambleIsPermutation(t *testing.T) {
	r := engine.NewStream(engine.Seeds{Server: "scramble", Client: "words"})
	for _, w := range Words {
		for i := 0; i < 50; i++ {
			s := Scramble(r, w)
			if s == w {
				t.Fatalf("Scramble(%s) returned the word unchanged", w)
			}
			if sortedLetters(s) != sortedLetters(w) {
				t.Fatalf("Scramble(%s) = %s is not a permutation", w, s)
			}
		}
	}
}

func TestScrambleUnscramblable(t *testing.T) {
	r := fixedRand{}
	for _, w := range []string{"", "A", "AAA"} {
		if got := Scramble(r, w); got != w {
			t.Errorf("Scramble(%q) = %q", w, got)
		}
	}
}

func TestWordGuess(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	g := NewWord(testDeps(clock, &eventLog{}))

	if _, err := g.Guess("apple"); err != ErrNotActive {
		t.Errorf("guess while inactive: expected ErrNotActive, got %v", err)
	}
	if err := g.Skip(); err != ErrNotActive {
		t.Errorf("skip while inactive: expected ErrNotActive, got %v", err)
	}

	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	st := g.State().(WordState)
	if !st.Active || st.TimeLeft != 30 || st.Points != 0 {
		t.Fatalf("unexpected start state: %+v", st)
	}

	g.word, g.scrambled = "APPLE", "PALEP"

	ok, err := g.Guess("  apple ")
	if err != nil || !ok {
		t.Fatalf("expected correct guess, got ok=%v err=%v", ok, err)
	}
	st = g.State().(WordState)
	if st.Points != 10 {
		t.Errorf("expected 10 points, got %d", st.Points)
	}
	if st.Feedback != "Correct!" {
		t.Errorf("expected Correct! feedback, got %q", st.Feedback)
	}

	current := g.word
	ok, _ = g.Guess("zzzzz")
	if ok {
		t.Error("wrong guess accepted")
	}
	st = g.State().(WordState)
	if st.Points != 10 || g.word != current {
		t.Error("wrong guess should not score or advance")
	}
	if st.Feedback != "Try again!" {
		t.Errorf("expected Try again! feedback, got %q", st.Feedback)
	}

	if err := g.Skip(); err != nil {
		t.Fatal(err)
	}
	if g.State().(WordState).Points != 10 {
		t.Error("skip should not change points")
	}
}

func TestWordCountdownEndsRound(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	log := &eventLog{}
	g := NewWord(testDeps(clock, log))
	g.Start()

	for i := 0; i < 12; i++ {
		g.Guess(g.word)
	}

	clock.Advance(29 * time.Second)
	st := g.State().(WordState)
	if !st.Active || st.TimeLeft != 1 {
		t.Fatalf("expected 1s left, got %+v", st)
	}

	clock.Advance(time.Second)
	st = g.State().(WordState)
	if st.Active || !st.Ended {
		t.Fatalf("round should have ended: %+v", st)
	}
	if st.FinalScore != 120 {
		t.Errorf("expected final points 120, got %d", st.FinalScore)
	}
	if clock.Pending() != 0 {
		t.Error("countdown should stop at zero")
	}

	events := log.all()
	if len(events) != 1 || events[0].Game != IDWord || events[0].Score != 100 {
		t.Errorf("expected capped word score event, got %+v", events)
	}

	if _, err := g.Guess("apple"); err != ErrNotActive {
		t.Errorf("expected ErrNotActive after end, got %v", err)
	}
}

func TestWordRestartResetsCountdown(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	g := NewWord(testDeps(clock, &eventLog{}))
	g.Start()
	clock.Advance(10 * time.Second)
	g.Start()

	if clock.Pending() != 1 {
		t.Errorf("expected a single countdown, got %d", clock.Pending())
	}
	if left := g.State().(WordState).TimeLeft; left != 30 {
		t.Errorf("expected 30s after restart, got %d", left)
	}
}

func TestWordStaleTickIgnoredAfterRestart(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	g := NewWord(testDeps(clock, &eventLog{}))
	g.Start()
	stale := g.round
	g.Start()

	// A tick of the first round that was already waiting on the lock.
	g.countdown(stale)
	if left := g.State().(WordState).TimeLeft; left != 30 {
		t.Errorf("old round tick changed the new round's timer: %d left", left)
	}

	g.countdown(g.round)
	if left := g.State().(WordState).TimeLeft; left != 29 {
		t.Errorf("expected 29s after a current tick, got %d", left)
	}
}

func TestWordZeroFinalScoreSerialised(t *testing.T) {
	clock := schedule.NewManual(testEpoch)
	g := NewWord(testDeps(clock, &eventLog{}))
	g.Start()
	clock.Advance(wordRoundSeconds * time.Second)

	raw, err := json.Marshal(g.State())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if v, ok := got["final_score"]; !ok || v != float64(0) {
		t.Errorf("expected final_score 0 in %s", raw)
	}
	if got["ended"] != true {
		t.Errorf("expected ended round in %s", raw)
	}
}
