package chat

import (
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// Strategy selects how history is bounded when it exceeds the limit.
type Strategy string

const (
	// StrategyPairPreserving takes the most recent max messages, then walks
	// the cut point backward until it lands on a request message so the
	// window never opens mid-exchange. The result may exceed max by the
	// number of backward steps taken.
	StrategyPairPreserving Strategy = "pairs"

	// StrategySuffix takes exactly the last max messages regardless of
	// alignment and relies on ValidateToolPairs to repair the cut.
	StrategySuffix Strategy = "suffix"
)

// ParseStrategy maps a config string to a Strategy. Unknown values fall
// back to pair-preserving, the stricter of the two.
func ParseStrategy(s string) Strategy {
	if Strategy(s) == StrategySuffix {
		return StrategySuffix
	}
	return StrategyPairPreserving
}

// Truncate bounds history to at most max messages according to the given
// strategy. Histories already within bounds are returned unchanged; the
// input slice is never mutated. Applying the same bound twice yields the
// same result as once.
func Truncate(history []ports.Message, max int, strategy Strategy) []ports.Message {
	if max <= 0 {
		return nil
	}
	if len(history) <= max {
		return history
	}
	start := len(history) - max
	if strategy == StrategySuffix {
		return history[start:]
	}
	for start > 0 && !history[start].IsRequest() {
		start--
	}
	return history[start:]
}
