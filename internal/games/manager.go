package games

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/senipy/internal/engine"
	"github.com/MJE43/senipy/internal/schedule"
)

// ScoreSink persists what games report. The score store implements it.
type ScoreSink interface {
	SetScore(ctx context.Context, namespace, game string, score int) error
	// RecordReaction persists ms and score only when ms beats the stored
	// best, and reports whether it did.
	RecordReaction(ctx context.Context, namespace string, ms, score int) (bool, error)
	BestReaction(ctx context.Context, namespace string) (int, bool, error)
}

// Snapshot is a session's state as returned to clients.
type Snapshot struct {
	ID      string    `json:"id"`
	Game    string    `json:"game"`
	State   any       `json:"state"`
	Created time.Time `json:"created_at"`
}

// ManagerConfig tunes session lifetime.
type ManagerConfig struct {
	IdleTTL      time.Duration
	SweepEvery   time.Duration
	PersistLimit time.Duration
}

type session struct {
	id       uuid.UUID
	visitor  string
	game     Game
	created  time.Time
	lastSeen time.Time
}

// Manager owns live game sessions keyed by id and visitor.
type Manager struct {
	mu       sync.Mutex
	clock    schedule.Clock
	scores   ScoreSink
	logger   *slog.Logger
	cfg      ManagerConfig
	sessions map[uuid.UUID]*session
	newRand  func() engine.Rand
	jobs     schedule.Group
	started  bool
}

// NewManager builds a Manager. Call Start to enable idle sweeping.
func NewManager(clock schedule.Clock, scores ScoreSink, logger *slog.Logger, cfg ManagerConfig) *Manager {
	if clock == nil {
		clock = schedule.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = time.Minute
	}
	if cfg.PersistLimit <= 0 {
		cfg.PersistLimit = 5 * time.Second
	}
	return &Manager{
		clock:    clock,
		scores:   scores,
		logger:   logger.With("component", "games"),
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*session),
		newRand:  func() engine.Rand { return engine.NewRandomStream() },
	}
}

// Start begins sweeping idle sessions.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		m.started = true
		m.jobs.Add(m.clock.Every(m.cfg.SweepEvery, m.sweep))
	}
}

// Create starts a new game for visitor.
func (m *Manager) Create(ctx context.Context, visitor, gameID string) (Snapshot, error) {
	if !Known(gameID) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownGame, gameID)
	}

	deps := Deps{
		Clock: m.clock,
		Rand:  m.newRand(),
		Emit:  func(ev Event) { m.persist(visitor, ev) },
	}
	if gameID == IDReaction && m.scores != nil {
		best, ok, err := m.scores.BestReaction(ctx, visitor)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load best reaction: %w", err)
		}
		deps.BestReaction, deps.HasBestReaction = best, ok
	}

	game, err := New(gameID, deps)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.clock.Now()
	s := &session{id: uuid.New(), visitor: visitor, game: game, created: now, lastSeen: now}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("game_session_created", "session_id", s.id, "game", gameID)
	return s.snapshot(), nil
}

// Act applies an action and returns the resulting snapshot.
func (m *Manager) Act(visitor, id string, a Action) (Snapshot, error) {
	s, err := m.lookup(visitor, id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.game.Act(a); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// Snapshot returns the current state of a session.
func (m *Manager) Snapshot(visitor, id string) (Snapshot, error) {
	s, err := m.lookup(visitor, id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// Close tears a session down and cancels its timers.
func (m *Manager) Close(visitor, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrSessionNotFound
	}

	m.mu.Lock()
	s, ok := m.sessions[uid]
	if !ok || s.visitor != visitor {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, uid)
	m.mu.Unlock()

	s.game.Close()
	m.logger.Info("game_session_closed", "session_id", s.id, "game", s.game.Spec().ID)
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops sweeping and tears down every session.
func (m *Manager) Shutdown() {
	m.jobs.Stop()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.game.Close()
	}
}

func (m *Manager) lookup(visitor, id string) (*session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	if !ok || s.visitor != visitor {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = m.clock.Now()
	return s, nil
}

func (m *Manager) sweep() {
	cutoff := m.clock.Now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.game.Close()
		m.logger.Info("game_session_expired", "session_id", s.id, "game", s.game.Spec().ID)
	}
}

// persist runs on the goroutine that completed the game, which may be a
// timer, so it uses its own deadline.
func (m *Manager) persist(visitor string, ev Event) {
	if m.scores == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PersistLimit)
	defer cancel()

	var err error
	switch ev.Kind {
	case EventBestReaction:
		var improved bool
		improved, err = m.scores.RecordReaction(ctx, visitor, ev.ReactionMS, ev.Score)
		if err == nil && !improved {
			m.logger.Info("reaction_best_kept", "ms", ev.ReactionMS)
			return
		}
	default:
		err = m.scores.SetScore(ctx, visitor, ev.Game, ev.Score)
	}
	if err != nil {
		m.logger.Error("score_persist_failed", "game", ev.Game, "error", err)
		return
	}
	m.logger.Info("score_recorded", "game", ev.Game, "score", ev.Score)
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:      s.id.String(),
		Game:    s.game.Spec().ID,
		State:   s.game.State(),
		Created: s.created,
	}
}
