package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// ScriptedAgent stands in for the external RAG agent during local
// development and tests: it searches the injected document source,
// fabricates the matching tool-call/tool-return pair, and streams a
// markdown answer word by word. The whole pipeline runs without any
// external service; real deployments swap in their agent at the same port.
type ScriptedAgent struct {
	delay time.Duration
}

// NewScriptedAgent creates a scripted agent pausing delay between deltas
// (zero for tests).
func NewScriptedAgent(delay time.Duration) *ScriptedAgent {
	return &ScriptedAgent{delay: delay}
}

// RunStream implements the agent boundary: a fresh finite stream per turn.
func (a *ScriptedAgent) RunStream(ctx context.Context, userText string, history []ports.Message, deps *ports.Deps) (<-chan ports.Delta, error) {
	out := make(chan ports.Delta, 8)
	go func() {
		defer close(out)

		query := strings.TrimSpace(userText)
		var snippets []ports.Snippet
		if deps != nil && deps.Source != nil {
			found, err := deps.Source.Search(ctx, query, 3)
			if err == nil {
				snippets = found
			}
		}

		args, _ := json.Marshal(map[string]any{"query": query, "limit": 3})
		result := formatSnippets(snippets)
		answer := scriptedAnswer(query, snippets, deps)

		newMessages := []ports.Message{
			ports.NewUserRequest(userText),
			ports.NewResponse(ports.ToolCall("search_documents", args)),
			ports.NewRequest(ports.ToolReturn("search_documents", result)),
			ports.NewTextResponse(answer),
		}

		for _, chunk := range strings.SplitAfter(answer, " ") {
			if a.delay > 0 {
				t := time.NewTimer(a.delay)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
			}
			select {
			case out <- ports.Delta{Text: chunk}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- ports.Delta{Done: true, NewMessages: newMessages}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func formatSnippets(snippets []ports.Snippet) string {
	if len(snippets) == 0 {
		return "no matching documents"
	}
	lines := make([]string, 0, len(snippets))
	for _, s := range snippets {
		lines = append(lines, fmt.Sprintf("[%s] %s", s.Source, s.Content))
	}
	return strings.Join(lines, "\n")
}

func scriptedAnswer(query string, snippets []ports.Snippet, deps *ports.Deps) string {
	if len(snippets) == 0 {
		return fmt.Sprintf("I could not find anything relevant to %q in the indexed documents. "+
			"Try rephrasing the question or indexing more material.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here is what the indexed documents say about %q:\n\n", query)
	for _, s := range snippets {
		fmt.Fprintf(&b, "- **%s**: %s\n", s.Source, s.Content)
	}
	collection := "docs"
	if deps != nil && deps.Collection != "" {
		collection = deps.Collection
	}
	fmt.Fprintf(&b, "\nAssembled from %d snippet(s) in the `%s` collection.", len(snippets), collection)
	return b.String()
}

// ScriptedDeps returns the dependency factory paired with the scripted
// agent: an in-memory document source over a tiny corpus describing the
// application itself.
func ScriptedDeps(collection, embeddingModel string) ports.DepsFactory {
	return func(ctx context.Context) (*ports.Deps, error) {
		return &ports.Deps{
			Source:         newStaticSource(),
			Collection:     collection,
			EmbeddingModel: embeddingModel,
		}, nil
	}
}

// staticSource serves canned snippets ranked by naive term overlap. It
// exists so the scripted pipeline exercises the DocumentSource boundary;
// real retrieval lives outside this repository.
type staticSource struct {
	docs []ports.Snippet
}

func newStaticSource() *staticSource {
	return &staticSource{docs: []ports.Snippet{
		{Source: "getting-started.md", Content: "Ask questions in plain language; answers are grounded in the indexed document collection."},
		{Source: "history.md", Content: "The conversation history is bounded to a configurable number of messages; older exchanges are dropped before each turn."},
		{Source: "settings.md", Content: "The sidebar slider adjusts the history limit between 3 and 20 messages and applies immediately."},
		{Source: "tools.md", Content: "Document searches appear in the transcript as collapsible tool annotations showing the query and the returned snippets."},
	}}
}

// Search scores each document by shared lowercase terms with the query and
// returns the best limit matches, falling back to the corpus head when
// nothing overlaps.
func (s *staticSource) Search(ctx context.Context, query string, limit int) ([]ports.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(s.docs) {
		limit = len(s.docs)
	}

	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		snip  ports.Snippet
		score float64
	}
	ranked := make([]scored, 0, len(s.docs))
	for _, d := range s.docs {
		content := strings.ToLower(d.Source + " " + d.Content)
		n := 0.0
		for _, t := range terms {
			if strings.Contains(content, t) {
				n++
			}
		}
		ranked = append(ranked, scored{snip: d, score: n})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]ports.Snippet, 0, limit)
	for _, r := range ranked[:limit] {
		snip := r.snip
		snip.Score = r.score
		out = append(out, snip)
	}
	return out, nil
}

// Ensure the scripted pieces satisfy their ports.
var (
	_ ports.Agent          = (*ScriptedAgent)(nil)
	_ ports.DocumentSource = (*staticSource)(nil)
)
