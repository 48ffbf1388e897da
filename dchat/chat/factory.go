package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/docuchat/dchat/chat/adapters"
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
	"github.com/ZanzyTHEbar/docuchat/dchat/config"
)

// Factory creates and wires chat components from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewFactory creates a new chat factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// CreateSession builds an empty session with the configured history policy
// and the dependency factory matching the agent provider.
func (f *Factory) CreateSession() *Session {
	history := f.cfg.DChat.History
	manager := HistoryManager{
		MaxMessages: history.MaxMessages,
		Strategy:    ParseStrategy(history.Strategy),
	}
	return NewSession(manager, history.TokenWarnLimit, f.createDepsFactory(), f.logger)
}

// CreateOrchestrator wires a fully configured turn orchestrator for the
// session.
func (f *Factory) CreateOrchestrator(session *Session) *Orchestrator {
	return NewOrchestrator(session, f.createAgent(), f.CreateTracer(), f.createRateLimiter())
}

// CreateRenderCache returns the cache for rendered transcript fragments.
func (f *Factory) CreateRenderCache() ports.Cache {
	cache := f.cfg.DChat.Cache
	if !cache.Enabled {
		return &noOpCache{}
	}
	return adapters.NewRenderCache(cache.Capacity)
}

// CreateTracer returns the turn tracer, a no-op unless tracing is enabled.
func (f *Factory) CreateTracer() ports.Tracer {
	if !f.cfg.DChat.Logging.Tracing {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

func (f *Factory) createRateLimiter() ports.RateLimiter {
	limit := f.cfg.DChat.RateLimit
	if !limit.Enabled {
		return &noOpRateLimiter{}
	}
	return adapters.NewTurnLimiter(limit.PerMinute, limit.Burst)
}

func (f *Factory) createAgent() ports.Agent {
	agent := f.cfg.DChat.Agent
	delay := time.Duration(agent.StreamDelayMs) * time.Millisecond
	switch agent.Provider {
	case "", "scripted":
		return adapters.NewScriptedAgent(delay)
	default:
		// Real agents are injected by embedding this package; the binary
		// only knows the scripted one.
		f.logger.Warn().Str("provider", agent.Provider).Msg("unknown agent provider, falling back to scripted")
		return adapters.NewScriptedAgent(delay)
	}
}

func (f *Factory) createDepsFactory() ports.DepsFactory {
	agent := f.cfg.DChat.Agent
	return adapters.ScriptedDeps(agent.Collection, agent.EmbeddingModel)
}

// noOpCache disables transcript memoization.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpRateLimiter admits every turn.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// noOpTracer drops all spans and events.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache       = (*noOpCache)(nil)
	_ ports.RateLimiter = (*noOpRateLimiter)(nil)
	_ ports.Tracer      = (*noOpTracer)(nil)
)
