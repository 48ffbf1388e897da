package chatports

import "context"

// Snippet is one retrieved document fragment, as the agent's tools report it.
type Snippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// DocumentSource is the opaque vector-store handle injected into the agent.
// Implementations live outside this repository; the front-end only carries
// the handle from session initialization to the agent boundary.
type DocumentSource interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}
