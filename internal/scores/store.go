// Package scores is the single writer of the per-visitor score record and
// reaction best time.
package scores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/store"
)

// Storage keys inside a visitor namespace.
const (
	KeyGameScores   = "gameScores"
	KeyReactionBest = "reactionBestTime"
)

// Summary is the aggregate shown on the games page.
type Summary struct {
	Scores         map[string]int `json:"scores"`
	BestReactionMS int            `json:"best_reaction_ms,omitempty"`
	HasBest        bool           `json:"has_best_reaction"`
	Average        int            `json:"average"`
	Played         int            `json:"played"`
}

// Store reads and writes scores through a key-value backend. Writes are
// serialised within the process.
type Store struct {
	mu     sync.Mutex
	kv     store.KV
	logger *slog.Logger
}

// New returns a Store over kv.
func New(kv store.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger.With("component", "scores")}
}

// Record returns the visitor's score record.
func (s *Store) Record(ctx context.Context, namespace string) (Record, error) {
	raw, err := s.kv.Get(ctx, namespace, KeyGameScores)
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeRecord(raw)
}

// SetScore records score for game, replacing any earlier value.
func (s *Store) SetScore(ctx context.Context, namespace, game string, score int) error {
	if !games.Known(game) {
		return fmt.Errorf("%w: %q", ErrUnknownGame, game)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putScore(ctx, namespace, game, score)
}

func (s *Store) putScore(ctx context.Context, namespace, game string, score int) error {
	rec, err := s.Record(ctx, namespace)
	if err != nil {
		return err
	}
	rec[game] = Clamp(score)

	raw, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, namespace, KeyGameScores, raw); err != nil {
		return err
	}
	s.logger.Debug("score_saved", "game", game, "score", rec[game])
	return nil
}

// BestReaction returns the persisted best reaction time in milliseconds.
func (s *Store) BestReaction(ctx context.Context, namespace string) (int, bool, error) {
	raw, err := s.kv.Get(ctx, namespace, KeyReactionBest)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		s.logger.Warn("reaction_best_invalid", "value", raw)
		return 0, false, nil
	}
	return ms, true, nil
}

// RecordReaction stores ms as the best reaction time and score as the
// reaction score, but only when ms beats the persisted best. It reports
// whether anything was written.
func (s *Store) RecordReaction(ctx context.Context, namespace string, ms, score int) (bool, error) {
	if ms < 0 {
		return false, fmt.Errorf("negative reaction time %d", ms)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best, ok, err := s.BestReaction(ctx, namespace)
	if err != nil {
		return false, err
	}
	if ok && ms >= best {
		s.logger.Debug("reaction_not_best", "ms", ms, "best", best)
		return false, nil
	}
	if err := s.kv.Put(ctx, namespace, KeyReactionBest, strconv.Itoa(ms)); err != nil {
		return false, err
	}
	if err := s.putScore(ctx, namespace, games.IDReaction, score); err != nil {
		return false, err
	}
	return true, nil
}

// Summary returns every game's score (0 when unplayed), the best reaction
// time and the average, rounded half-up, over the scored games with a
// positive score. Reaction is reported but kept out of the average.
func (s *Store) Summary(ctx context.Context, namespace string) (Summary, error) {
	rec, err := s.Record(ctx, namespace)
	if err != nil {
		return Summary{}, err
	}
	best, hasBest, err := s.BestReaction(ctx, namespace)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Scores: make(map[string]int), BestReactionMS: best, HasBest: hasBest}
	total := 0
	for _, spec := range games.ListSpecs() {
		v := rec[spec.ID]
		sum.Scores[spec.ID] = v
		if !Averaged(spec.ID) || v <= 0 {
			continue
		}
		total += v
		sum.Played++
	}
	sum.Average = Average(total, sum.Played)
	return sum, nil
}

// Averaged reports whether game counts toward the summary average.
func Averaged(game string) bool {
	switch game {
	case games.IDMemory, games.IDWord, games.IDPuzzle:
		return true
	}
	return false
}

// Average is total/n rounded half-up, or 0 when n is 0.
func Average(total, n int) int {
	if n == 0 {
		return 0
	}
	avg := decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(n))).Round(0)
	return int(avg.IntPart())
}

var _ games.ScoreSink = (*Store)(nil)
