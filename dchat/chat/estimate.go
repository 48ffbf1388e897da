package chat

import (
	"unicode/utf8"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// EstimateTokens approximates the token cost of a history as total content
// length in characters divided by four. Only parts that carry a content
// payload count; tool-call arguments are skipped. Advisory: the value
// drives the metrics panel and its warning threshold, never any history
// mutation.
func EstimateTokens(history []ports.Message) int {
	total := 0
	for _, msg := range history {
		for _, p := range msg.Parts {
			if p.HasContent() {
				total += utf8.RuneCountInString(p.Content)
			}
		}
	}
	return total / 4
}
