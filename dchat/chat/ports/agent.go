package chatports

import "context"

// Deps bundles the retrieval dependencies handed to the agent on every run:
// the vector-store handle, the collection to search, and the embedding model
// the collection was built with. Built once per session, lazily, on the
// first turn.
type Deps struct {
	Source         DocumentSource
	Collection     string
	EmbeddingModel string
}

// DepsFactory builds the dependency bundle on first use. A failed build
// fails only the turn that triggered it; the next turn retries.
type DepsFactory func(ctx context.Context) (*Deps, error)

// Delta is one streamed fragment of an agent turn. Zero or more deltas
// carry incremental text, then exactly one terminal delta has Done set and
// carries either the turn's finalized new messages or Err. The channel is
// closed after the terminal delta.
type Delta struct {
	Text        string
	Done        bool
	NewMessages []Message
	Err         error
}

// Agent is the external RAG agent boundary. RunStream opens a fresh finite
// stream for one turn: history is the bounded window to replay, userText
// the new input. The caller consumes deltas until the terminal one and
// stops early only by cancelling ctx; a stream is never restarted.
type Agent interface {
	RunStream(ctx context.Context, userText string, history []Message, deps *Deps) (<-chan Delta, error)
}
