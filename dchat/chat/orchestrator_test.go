package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/docuchat/dchat/chat/adapters"
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// stubAgent implements Agent for testing.
type stubAgent struct {
	runFunc func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error)
}

func (a *stubAgent) RunStream(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
	if a.runFunc != nil {
		return a.runFunc(ctx, userText, history, deps)
	}
	return deltaStream(ports.Delta{Done: true}), nil
}

// deltaStream returns a closed channel preloaded with the given deltas.
func deltaStream(deltas ...ports.Delta) <-chan ports.Delta {
	ch := make(chan ports.Delta, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch
}

// stubLimiter implements RateLimiter for testing.
type stubLimiter struct {
	err      error
	acquired int
	released int
}

func (l *stubLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

// stubTracer implements Tracer for testing, counting spans and events.
type stubTracer struct {
	spans  int
	events []string
}

func (t *stubTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	t.spans++
	return ctx, func(err error) {}
}

func (t *stubTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	t.events = append(t.events, name)
}

// Ensure the stubs implement their ports.
var (
	_ ports.Agent       = (*stubAgent)(nil)
	_ ports.RateLimiter = (*stubLimiter)(nil)
	_ ports.Tracer      = (*stubTracer)(nil)
)

// collectEvents drains a turn's event channel, returning the deltas in
// order and the terminal event.
func collectEvents(t *testing.T, events <-chan TurnEvent) ([]string, TurnEvent) {
	t.Helper()
	var deltas []string
	var terminal TurnEvent
	for ev := range events {
		if ev.Done {
			terminal = ev
			continue
		}
		deltas = append(deltas, ev.Delta)
	}
	require.True(t, terminal.Done, "stream ended without a terminal event")
	return deltas, terminal
}

// TestOrchestrator_RunTurn_StreamsAndCommits tests the happy path: deltas
// relay in order, the terminal event carries the full text, and the new
// messages are committed.
func TestOrchestrator_RunTurn_StreamsAndCommits(t *testing.T) {
	newMessages := []ports.Message{
		ports.NewUserRequest("hello"),
		ports.NewTextResponse("Hello world"),
	}
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		return deltaStream(
			ports.Delta{Text: "Hello "},
			ports.Delta{Text: "world"},
			ports.Delta{Done: true, NewMessages: newMessages},
		), nil
	}}
	session := newTestSession(10, StrategySuffix)
	tracer := &stubTracer{}
	orch := NewOrchestrator(session, agent, tracer, &stubLimiter{})

	events, err := orch.RunTurn(context.Background(), "hello")
	require.NoError(t, err)

	deltas, terminal := collectEvents(t, events)
	assert.Equal(t, []string{"Hello ", "world"}, deltas)
	assert.NoError(t, terminal.Err)
	assert.Equal(t, "Hello world", terminal.Text)

	assert.Equal(t, newMessages, session.Snapshot())
	assert.Equal(t, StateIdle, orch.State())
	assert.Contains(t, tracer.events, "turn_committed")
}

// TestOrchestrator_RunTurn_SingleFlight tests that a second submission is
// refused while a turn is running and allowed again afterwards.
func TestOrchestrator_RunTurn_SingleFlight(t *testing.T) {
	gate := make(chan struct{})
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		ch := make(chan ports.Delta, 1)
		go func() {
			defer close(ch)
			<-gate
			ch <- ports.Delta{Done: true, NewMessages: []ports.Message{ports.NewTextResponse("late")}}
		}()
		return ch, nil
	}}
	session := newTestSession(10, StrategySuffix)
	orch := NewOrchestrator(session, agent, &stubTracer{}, &stubLimiter{})

	events, err := orch.RunTurn(context.Background(), "first")
	require.NoError(t, err)

	_, err = orch.RunTurn(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(gate)
	_, terminal := collectEvents(t, events)
	assert.NoError(t, terminal.Err)
	assert.Equal(t, StateIdle, orch.State())

	// Idle again: the next submission is accepted.
	events, err = orch.RunTurn(context.Background(), "third")
	require.NoError(t, err)
	collectEvents(t, events)
}

// TestOrchestrator_RunTurn_ClearDuringStream tests clearing mid-stream:
// nothing breaks, the stream still completes, the stale commit is dropped,
// and the next turn starts from an empty history.
func TestOrchestrator_RunTurn_ClearDuringStream(t *testing.T) {
	newMessages := []ports.Message{
		ports.NewUserRequest("latest"),
		ports.NewTextResponse("answer"),
	}
	gate := make(chan struct{})
	var replayed []int
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		replayed = append(replayed, len(history))
		ch := make(chan ports.Delta, 2)
		go func() {
			defer close(ch)
			ch <- ports.Delta{Text: "thinking"}
			<-gate
			ch <- ports.Delta{Done: true, NewMessages: newMessages}
		}()
		return ch, nil
	}}
	session := newTestSession(10, StrategySuffix)
	session.CommitTurn(makeHistory(6)...)
	tracer := &stubTracer{}
	orch := NewOrchestrator(session, agent, tracer, &stubLimiter{})

	events, err := orch.RunTurn(context.Background(), "latest")
	require.NoError(t, err)

	// Wait for the first delta so the turn is demonstrably streaming, then
	// clear underneath it.
	first := <-events
	assert.Equal(t, "thinking", first.Delta)
	session.Clear()
	close(gate)

	_, terminal := collectEvents(t, events)
	assert.NoError(t, terminal.Err)
	assert.Equal(t, "thinking", terminal.Text)

	// The clear won: the stale commit was dropped and the conversation
	// stays empty.
	assert.Empty(t, session.Snapshot())
	assert.Contains(t, tracer.events, "turn_discarded")

	// The next turn replays an empty history and commits normally.
	events, err = orch.RunTurn(context.Background(), "latest")
	require.NoError(t, err)
	_, terminal = collectEvents(t, events)
	require.NoError(t, terminal.Err)
	assert.Equal(t, []int{6, 0}, replayed)
	assert.Equal(t, newMessages, session.Snapshot())
}

// TestOrchestrator_RunTurn_StreamErrorDiscardsPartial tests that a
// mid-stream failure commits nothing.
func TestOrchestrator_RunTurn_StreamErrorDiscardsPartial(t *testing.T) {
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		return deltaStream(
			ports.Delta{Text: "partial "},
			ports.Delta{Err: errors.New("model exploded")},
		), nil
	}}
	session := newTestSession(10, StrategySuffix)
	orch := NewOrchestrator(session, agent, &stubTracer{}, &stubLimiter{})

	events, err := orch.RunTurn(context.Background(), "doomed")
	require.NoError(t, err)

	deltas, terminal := collectEvents(t, events)
	assert.Equal(t, []string{"partial "}, deltas)
	require.Error(t, terminal.Err)
	assert.Contains(t, terminal.Err.Error(), "agent stream failed")

	assert.Empty(t, session.Snapshot())
	assert.Equal(t, StateIdle, orch.State())
}

// TestOrchestrator_RunTurn_ClosedStreamIsFailure tests that a stream ending
// without a terminal delta is treated as an error, not a silent commit.
func TestOrchestrator_RunTurn_ClosedStreamIsFailure(t *testing.T) {
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		return deltaStream(ports.Delta{Text: "cut off"}), nil
	}}
	session := newTestSession(10, StrategySuffix)
	orch := NewOrchestrator(session, agent, &stubTracer{}, &stubLimiter{})

	events, err := orch.RunTurn(context.Background(), "hi")
	require.NoError(t, err)

	_, terminal := collectEvents(t, events)
	require.Error(t, terminal.Err)
	assert.Contains(t, terminal.Err.Error(), "closed without completion")
	assert.Empty(t, session.Snapshot())
}

// TestOrchestrator_RunTurn_CancelAbandonsTurn tests context cancellation
// mid-stream: partial text is discarded and the orchestrator returns to
// idle.
func TestOrchestrator_RunTurn_CancelAbandonsTurn(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		ch := make(chan ports.Delta, 1)
		go func() {
			defer close(ch)
			ch <- ports.Delta{Text: "part"}
			<-block // holds the stream open so cancellation is what ends the turn
		}()
		return ch, nil
	}}
	session := newTestSession(10, StrategySuffix)
	orch := NewOrchestrator(session, agent, &stubTracer{}, &stubLimiter{})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := orch.RunTurn(ctx, "hi")
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, "part", first.Delta)
	cancel()

	_, terminal := collectEvents(t, events)
	assert.ErrorIs(t, terminal.Err, context.Canceled)
	assert.Empty(t, session.Snapshot())

	orch.Wait()
	assert.Equal(t, StateIdle, orch.State())
}

// TestOrchestrator_RunTurn_RateLimited tests that a denied acquire fails
// fast and leaves the orchestrator usable.
func TestOrchestrator_RunTurn_RateLimited(t *testing.T) {
	session := newTestSession(10, StrategySuffix)
	orch := NewOrchestrator(session, &stubAgent{}, &stubTracer{}, &stubLimiter{err: adapters.ErrRateLimited})

	_, err := orch.RunTurn(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapters.ErrRateLimited)
	assert.Equal(t, StateIdle, orch.State())

	// The slot was released: the next refusal is the limiter again, not
	// ErrTurnInFlight.
	_, err = orch.RunTurn(context.Background(), "hi")
	assert.ErrorIs(t, err, adapters.ErrRateLimited)
}

// TestOrchestrator_RunTurn_DepsFailure tests that a dependency init error
// aborts the turn and releases the rate-limit slot.
func TestOrchestrator_RunTurn_DepsFailure(t *testing.T) {
	factory := func(ctx context.Context) (*ports.Deps, error) {
		return nil, errors.New("vector store offline")
	}
	session := NewSession(HistoryManager{MaxMessages: 10, Strategy: StrategySuffix}, 4000, factory, zerolog.New(zerolog.Nop()))
	limiter := &stubLimiter{}
	orch := NewOrchestrator(session, &stubAgent{}, &stubTracer{}, limiter)

	_, err := orch.RunTurn(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize agent dependencies")
	assert.Equal(t, StateIdle, orch.State())
	assert.Equal(t, 1, limiter.released)
}

// TestOrchestrator_RunTurn_OpenStreamFailureKeepsTruncation tests that the
// pre-turn truncation is committed even when the agent never starts.
func TestOrchestrator_RunTurn_OpenStreamFailureKeepsTruncation(t *testing.T) {
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		return nil, errors.New("connection refused")
	}}

	// Pair-preserving retains extra messages at commit, so the suffix bound
	// taken at turn start has something to drop.
	session := newTestSession(9, StrategyPairPreserving)
	session.CommitTurn(makeHistory(12)...)
	require.Len(t, session.Snapshot(), 10)
	session.SetStrategy(StrategySuffix)
	orch := NewOrchestrator(session, agent, &stubTracer{}, &stubLimiter{})

	_, err := orch.RunTurn(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open agent stream")
	assert.Equal(t, StateIdle, orch.State())

	// The pre-turn truncation stuck even though the turn failed.
	assert.Len(t, session.Snapshot(), 9)
}

// TestOrchestrator_RunTurn_TwoPhaseBounding tests both truncation phases
// across one turn: eight stored messages plus four new ones settle at the
// limit of ten.
func TestOrchestrator_RunTurn_TwoPhaseBounding(t *testing.T) {
	seeded := makeHistory(8)
	turn := []ports.Message{
		ports.NewUserRequest("question 8"),
		ports.NewResponse(ports.ToolCall("search_documents", nil)),
		ports.NewRequest(ports.ToolReturn("search_documents", "snippets")),
		ports.NewTextResponse("answer 11"),
	}
	agent := &stubAgent{runFunc: func(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
		// The replayed history is the bounded snapshot, not the raw store.
		assert.Len(t, history, 8)
		return deltaStream(ports.Delta{Done: true, NewMessages: turn}), nil
	}}
	session := newTestSession(10, StrategySuffix)
	session.CommitTurn(seeded...)
	orch := NewOrchestrator(session, agent, &stubTracer{}, &stubLimiter{})

	events, err := orch.RunTurn(context.Background(), "question 8")
	require.NoError(t, err)
	_, terminal := collectEvents(t, events)
	require.NoError(t, terminal.Err)

	got := session.Snapshot()
	require.Len(t, got, 10)
	assert.Equal(t, seeded[2], got[0])
	assert.Equal(t, turn[3], got[9])
}

// TestTurnState_String tests the state names.
func TestTurnState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "appending", StateAppending.String())
}
