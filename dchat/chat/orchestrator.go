package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// TurnState tracks where a turn is in its lifecycle. There is no distinct
// error state: a failed turn ends back at idle with whatever history
// mutations had already committed.
type TurnState int32

const (
	StateIdle TurnState = iota
	StateSending
	StateStreaming
	StateAppending
)

func (s TurnState) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateAppending:
		return "appending"
	default:
		return "idle"
	}
}

// ErrTurnInFlight rejects a submission while another turn is running. The
// UI disables input during a turn; this is the backstop for clients that
// do not.
var ErrTurnInFlight = errors.New("turn already in flight")

// TurnEvent is one update from an in-flight turn: a text delta while
// streaming, then a terminal event with Done set carrying the full
// response text or the turn error.
type TurnEvent struct {
	Delta string
	Done  bool
	Text  string
	Err   error
}

// Orchestrator drives one conversation turn end to end: bound the stored
// history, replay it to the agent with the new input, relay text deltas to
// the caller, then commit the agent's new messages and re-bound. Turns are
// single-flight per orchestrator.
type Orchestrator struct {
	session *Session
	agent   ports.Agent
	tracer  ports.Tracer
	limiter ports.RateLimiter

	state atomic.Int32
	turns conc.WaitGroup
}

// NewOrchestrator creates an orchestrator bound to one session.
func NewOrchestrator(session *Session, agent ports.Agent, tracer ports.Tracer, limiter ports.RateLimiter) *Orchestrator {
	return &Orchestrator{
		session: session,
		agent:   agent,
		tracer:  tracer,
		limiter: limiter,
	}
}

// State returns the current turn state.
func (o *Orchestrator) State() TurnState {
	return TurnState(o.state.Load())
}

// Wait blocks until any in-flight turn goroutine has finished. Used on
// shutdown.
func (o *Orchestrator) Wait() {
	o.turns.Wait()
}

// RunTurn submits one user message. It bounds the stored history (the
// truncation is committed and survives even a failed turn), lazily
// initializes the agent dependencies, opens a fresh agent stream, and
// returns a channel of turn events. The channel yields zero or more text
// deltas and is closed after one terminal event. Cancelling ctx abandons
// the stream: partial text is discarded and nothing is committed. A clear
// issued while the turn streams wins over it: the stream still completes
// for the caller, but the stale commit is dropped.
func (o *Orchestrator) RunTurn(ctx context.Context, userText string) (<-chan TurnEvent, error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateSending)) {
		return nil, ErrTurnInFlight
	}

	release, err := o.limiter.Acquire(ctx, o.session.ID())
	if err != nil {
		o.state.Store(int32(StateIdle))
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	ctx, finish := o.tracer.StartSpan(ctx, "turn", map[string]any{
		"session": o.session.ID(),
	})

	bounded := o.session.BoundHistory()
	o.tracer.Event(ctx, "history_bounded", map[string]any{"messages": len(bounded)})

	deps, err := o.session.Deps(ctx)
	if err != nil {
		release()
		finish(err)
		o.state.Store(int32(StateIdle))
		return nil, err
	}

	stream, err := o.agent.RunStream(ctx, userText, bounded, deps)
	if err != nil {
		release()
		finish(err)
		o.state.Store(int32(StateIdle))
		return nil, fmt.Errorf("open agent stream: %w", err)
	}

	events := make(chan TurnEvent, 10)
	o.state.Store(int32(StateStreaming))

	o.turns.Go(func() {
		defer close(events)
		defer release()

		var full strings.Builder
		for {
			select {
			case <-ctx.Done():
				o.tracer.Event(ctx, "turn_cancelled", map[string]any{"streamed_bytes": full.Len()})
				finish(ctx.Err())
				o.state.Store(int32(StateIdle))
				tryEmit(events, TurnEvent{Done: true, Err: ctx.Err()})
				return

			case d, ok := <-stream:
				if !ok {
					err := errors.New("agent stream closed without completion")
					finish(err)
					o.state.Store(int32(StateIdle))
					tryEmit(events, TurnEvent{Done: true, Err: err})
					return
				}
				if d.Err != nil {
					err := fmt.Errorf("agent stream failed: %w", d.Err)
					finish(err)
					o.state.Store(int32(StateIdle))
					tryEmit(events, TurnEvent{Done: true, Err: err})
					return
				}
				if d.Text != "" {
					full.WriteString(d.Text)
					if !emit(ctx, events, TurnEvent{Delta: d.Text}) {
						// Consumer is gone; the next iteration takes the
						// cancellation branch.
						continue
					}
				}
				if d.Done {
					o.state.Store(int32(StateAppending))
					if o.session.CommitTurn(d.NewMessages...) {
						o.tracer.Event(ctx, "turn_committed", map[string]any{"new_messages": len(d.NewMessages)})
					} else {
						o.tracer.Event(ctx, "turn_discarded", map[string]any{"new_messages": len(d.NewMessages)})
					}
					finish(nil)
					o.state.Store(int32(StateIdle))
					tryEmit(events, TurnEvent{Done: true, Text: full.String()})
					return
				}
			}
		}
	})

	return events, nil
}

// emit blocks until the event is accepted or ctx ends.
func emit(ctx context.Context, ch chan<- TurnEvent, ev TurnEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// tryEmit delivers best-effort; terminal events must never block teardown.
func tryEmit(ch chan<- TurnEvent, ev TurnEvent) {
	select {
	case ch <- ev:
	default:
	}
}
