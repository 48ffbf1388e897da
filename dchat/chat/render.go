package chat

import (
	"bytes"
	"encoding/json"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// RenderRole says which side of the transcript an instruction belongs to.
type RenderRole string

const (
	RoleUser      RenderRole = "user"
	RoleAssistant RenderRole = "assistant"
)

// RenderDisplay selects the widget a part renders into.
type RenderDisplay string

const (
	DisplayBubble     RenderDisplay = "bubble"
	DisplayAnnotation RenderDisplay = "annotation"
	DisplayHidden     RenderDisplay = "hidden"
)

// RenderInstruction tells the presentation layer how to draw one part. The
// mapping is fixed per part kind; the presentation layer applies styling
// and markdown but makes no decisions of its own.
type RenderInstruction struct {
	Role     RenderRole     `json:"role,omitempty"`
	Display  RenderDisplay  `json:"display"`
	Kind     ports.PartKind `json:"kind"`
	Label    string         `json:"label,omitempty"`
	Body     string         `json:"body"`
	Markdown bool           `json:"markdown,omitempty"`
}

// RenderPart maps one part to its render instruction: user prompts become
// user bubbles with the raw text, assistant text becomes a markdown bubble,
// tool calls and returns become collapsible annotations labeled with the
// tool name, and system/retry prompts stay hidden.
func RenderPart(p ports.Part) RenderInstruction {
	switch p.Kind {
	case ports.PartUserPrompt:
		return RenderInstruction{Role: RoleUser, Display: DisplayBubble, Kind: p.Kind, Body: p.Content}
	case ports.PartText:
		return RenderInstruction{Role: RoleAssistant, Display: DisplayBubble, Kind: p.Kind, Body: p.Content, Markdown: true}
	case ports.PartToolCall:
		return RenderInstruction{
			Role:    RoleAssistant,
			Display: DisplayAnnotation,
			Kind:    p.Kind,
			Label:   "Tool call: " + p.ToolName,
			Body:    compactJSON(p.Args),
		}
	case ports.PartToolReturn:
		return RenderInstruction{
			Role:    RoleAssistant,
			Display: DisplayAnnotation,
			Kind:    p.Kind,
			Label:   "Tool result: " + p.ToolName,
			Body:    p.Content,
		}
	default:
		return RenderInstruction{Display: DisplayHidden, Kind: p.Kind, Body: p.Content}
	}
}

// RenderHistory flattens a history into drawing order.
func RenderHistory(history []ports.Message) []RenderInstruction {
	out := make([]RenderInstruction, 0, len(history))
	for _, msg := range history {
		for _, p := range msg.Parts {
			out = append(out, RenderPart(p))
		}
	}
	return out
}

// compactJSON renders tool args on one line; invalid JSON passes through
// verbatim so a malformed call is still inspectable.
func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
