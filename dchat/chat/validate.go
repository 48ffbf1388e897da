package chat

import (
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// ValidateToolPairs drops messages whose tool-return parts have no pending
// tool-call left in the sequence, so a truncated history is safe to replay
// to the agent. Single forward pass, stable order, no mutation of the
// input. Matching is positional FIFO: a return consumes the oldest pending
// call, identifiers play no role.
//
// Branch priority per message is tool-call > tool-return > other. A message
// carrying any tool-call part pushes all of its calls and is kept; returns
// riding on the same message do not consume the queue. A message whose
// highest-priority parts are tool-returns pops one pending call per return
// (up to queue size) and is kept, or is dropped whole when the queue is
// empty. Everything else passes through. Trailing calls with no later
// return survive; only orphaned returns are pruned.
func ValidateToolPairs(history []ports.Message) []ports.Message {
	if len(history) == 0 {
		return history
	}
	pending := make([]string, 0, 4)
	out := make([]ports.Message, 0, len(history))
	for _, msg := range history {
		calls, returns := 0, 0
		for _, p := range msg.Parts {
			switch p.Kind {
			case ports.PartToolCall:
				calls++
			case ports.PartToolReturn:
				returns++
			}
		}
		switch {
		case calls > 0:
			for _, p := range msg.Parts {
				if p.Kind == ports.PartToolCall {
					pending = append(pending, p.ToolName)
				}
			}
			out = append(out, msg)
		case returns > 0:
			if len(pending) == 0 {
				// Orphaned return: the agent rejects replays that answer a
				// call it never saw.
				continue
			}
			n := returns
			if n > len(pending) {
				n = len(pending)
			}
			pending = pending[n:]
			out = append(out, msg)
		default:
			out = append(out, msg)
		}
	}
	return out
}
