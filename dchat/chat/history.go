package chat

import (
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// HistoryManager bounds a conversation before it is stored or replayed.
type HistoryManager struct {
	MaxMessages int
	Strategy    Strategy
}

// Bound applies the configured truncation strategy and, under the suffix
// strategy, prunes whatever tool pairs the cut left orphaned. The
// pair-preserving strategy aligns the window on a request instead and
// carries no corrective pass; a trailing unmatched tool-call can survive
// under either strategy.
func (h HistoryManager) Bound(history []ports.Message) []ports.Message {
	bounded := Truncate(history, h.MaxMessages, h.Strategy)
	if h.Strategy == StrategySuffix {
		bounded = ValidateToolPairs(bounded)
	}
	return bounded
}
