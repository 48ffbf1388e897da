package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/docuchat/dchat"
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// Session owns one conversation: its history, its lazily built agent
// dependency bundle, and the user-tunable history bound. All mutation goes
// through the session so the turn pipeline and the HTTP handlers can share
// it safely; the pipeline itself is single-flight, but clears, settings
// changes and metrics reads arrive from other requests mid-stream.
type Session struct {
	id     string
	logger zerolog.Logger

	mu      sync.RWMutex
	history []ports.Message
	// generation counts clears. A turn captures it at BoundHistory; its
	// commit is dropped if a clear has bumped it since.
	generation  uint64
	turnGen     uint64
	manager     HistoryManager
	warnLimit   int
	deps        *ports.Deps
	depsFactory ports.DepsFactory
}

// NewSession creates an empty session. The dependency factory runs lazily
// on the first turn, never here.
func NewSession(manager HistoryManager, tokenWarnLimit int, factory ports.DepsFactory, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	manager.MaxMessages = clampMaxMessages(manager.MaxMessages)
	return &Session{
		id:          id,
		logger:      logger.With().Str("session", id[:8]).Logger(),
		manager:     manager,
		warnLimit:   tokenWarnLimit,
		depsFactory: factory,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns a defensive copy of the stored history.
func (s *Session) Snapshot() []ports.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.Message, len(s.history))
	copy(out, s.history)
	return out
}

// BoundHistory truncates the stored history per the configured strategy,
// commits the result, and returns a copy for replay to the agent. It also
// opens the commit window: the matching CommitTurn lands only if no Clear
// runs in between.
func (s *Session) BoundHistory() []ports.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnGen = s.generation
	return s.boundLocked("pre-turn")
}

// CommitTurn appends the agent's finalized messages from a completed turn
// and re-bounds storage. The commit belongs to the turn opened by the last
// BoundHistory: if Clear ran since, the messages are stale and dropped so
// the cleared conversation stays empty. Reports whether the commit landed.
func (s *Session) CommitTurn(msgs ...ports.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnGen != s.generation {
		s.logger.Info().Int("discarded", len(msgs)).Msg("stale turn commit dropped after clear")
		return false
	}
	s.history = append(s.history, msgs...)
	s.boundLocked("post-turn")
	return true
}

func (s *Session) boundLocked(phase string) []ports.Message {
	before := len(s.history)
	s.history = s.manager.Bound(s.history)
	if dropped := before - len(s.history); dropped > 0 {
		s.logger.Debug().
			Str("phase", phase).
			Int("dropped", dropped).
			Int("kept", len(s.history)).
			Msg("history bounded")
	}
	out := make([]ports.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Clear unconditionally empties the history. Safe at any time, including
// while a turn is streaming: the in-flight turn's later commit is dropped
// as stale, so the next turn starts from an empty conversation. The
// dependency bundle survives a clear.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := len(s.history)
	s.history = nil
	s.generation++
	s.logger.Info().Int("cleared", cleared).Msg("history cleared")
}

// MaxMessages returns the current history bound.
func (s *Session) MaxMessages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager.MaxMessages
}

// SetMaxMessages clamps n to the allowed range, applies it, re-truncates
// the stored history immediately, and returns the applied value.
func (s *Session) SetMaxMessages(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := clampMaxMessages(n)
	if applied != n {
		s.logger.Warn().Int("requested", n).Int("applied", applied).Msg("history limit clamped")
	}
	s.manager.MaxMessages = applied
	s.boundLocked("limit-change")
	return applied
}

// Strategy returns the active truncation strategy.
func (s *Session) Strategy() Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager.Strategy
}

// SetStrategy switches the truncation strategy. Takes effect on the next
// bound; stored history is left as-is.
func (s *Session) SetStrategy(strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manager.Strategy = strategy
}

// Deps returns the agent dependency bundle, building it on first use. A
// build failure is returned to the caller and retried on the next turn.
func (s *Session) Deps(ctx context.Context) (*ports.Deps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deps != nil {
		return s.deps, nil
	}
	if s.depsFactory == nil {
		return nil, fmt.Errorf("no dependency factory configured")
	}
	deps, err := s.depsFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize agent dependencies: %w", err)
	}
	s.deps = deps
	s.logger.Info().
		Str("collection", deps.Collection).
		Str("embedding_model", deps.EmbeddingModel).
		Msg("agent dependencies initialized")
	return s.deps, nil
}

// Stats snapshots the current history load for the metrics panel.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Messages:        len(s.history),
		MaxMessages:     s.manager.MaxMessages,
		EstimatedTokens: EstimateTokens(s.history),
		TokenWarnLimit:  s.warnLimit,
	}
}

func clampMaxMessages(n int) int {
	if n < internal.MinMaxMessages {
		return internal.MinMaxMessages
	}
	if n > internal.MaxMaxMessages {
		return internal.MaxMaxMessages
	}
	return n
}
