package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"html"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// markdownInstance is initialized once and reused. The configuration never
// changes and goldmark is safe to share; parsing state is per-call. Raw
// HTML in the source stays escaped (goldmark's default), so agent output
// cannot inject markup.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// renderMarkdown converts assistant markdown to HTML, memoized by content
// hash so re-rendering the transcript on every history fetch stays cheap.
func renderMarkdown(ctx context.Context, cache ports.Cache, ttlSeconds int, source string) string {
	key := "md:" + hashString(source)
	if cached, ok := cache.Get(ctx, key); ok {
		return string(cached)
	}

	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(source), &buf); err != nil {
		return "<p>" + html.EscapeString(source) + "</p>"
	}
	out := buf.String()
	cache.Set(ctx, key, []byte(out), ttlSeconds)
	return out
}

// hashString returns a hex-encoded 128-bit sha256 prefix used as the
// render-cache key; distinct sources must never share a key.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
