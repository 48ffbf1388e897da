package chatports

import (
	"encoding/json"
	"time"
)

// MessageKind discriminates who produced a message.
type MessageKind string

const (
	// MessageRequest covers everything sent toward the agent: user prompts,
	// system prompts, tool returns, retry prompts.
	MessageRequest MessageKind = "request"
	// MessageResponse covers everything produced by the agent: text and
	// tool calls.
	MessageResponse MessageKind = "response"
)

// PartKind discriminates the payload of a Part.
type PartKind string

const (
	PartUserPrompt   PartKind = "user-prompt"
	PartSystemPrompt PartKind = "system-prompt"
	PartText         PartKind = "text"
	PartToolCall     PartKind = "tool-call"
	PartToolReturn   PartKind = "tool-return"
	PartRetryPrompt  PartKind = "retry-prompt"
)

// Part is one typed fragment of a Message. Kind selects which payload
// fields are meaningful: Content for user-prompt, system-prompt, text,
// tool-return and retry-prompt; ToolName+Args for tool-call; ToolName+
// Content for tool-return. Dispatch is always on Kind, never on field
// presence.
type Part struct {
	Kind     PartKind        `json:"part_kind"`
	Content  string          `json:"content,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
}

// HasContent reports whether this part's kind carries a Content payload.
// Tool-call args are deliberately not content: they are arguments, and the
// token estimator skips them.
func (p Part) HasContent() bool {
	switch p.Kind {
	case PartUserPrompt, PartSystemPrompt, PartText, PartToolReturn, PartRetryPrompt:
		return true
	default:
		return false
	}
}

// UserPrompt builds a user-prompt part.
func UserPrompt(text string) Part {
	return Part{Kind: PartUserPrompt, Content: text}
}

// SystemPrompt builds a system-prompt part.
func SystemPrompt(text string) Part {
	return Part{Kind: PartSystemPrompt, Content: text}
}

// TextPart builds an assistant text part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Content: text}
}

// ToolCall builds a tool-call part.
func ToolCall(name string, args json.RawMessage) Part {
	return Part{Kind: PartToolCall, ToolName: name, Args: args}
}

// ToolReturn builds a tool-return part.
func ToolReturn(name, content string) Part {
	return Part{Kind: PartToolReturn, ToolName: name, Content: content}
}

// RetryPrompt builds a retry-prompt part.
func RetryPrompt(text string) Part {
	return Part{Kind: PartRetryPrompt, Content: text}
}

// Message is one unit of conversation: a Request (user/system side) or a
// Response (agent side), carrying its parts in order.
type Message struct {
	Kind      MessageKind `json:"kind"`
	Parts     []Part      `json:"parts"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRequest wraps parts in a request message.
func NewRequest(parts ...Part) Message {
	return Message{Kind: MessageRequest, Parts: parts, Timestamp: time.Now().UTC()}
}

// NewResponse wraps parts in a response message.
func NewResponse(parts ...Part) Message {
	return Message{Kind: MessageResponse, Parts: parts, Timestamp: time.Now().UTC()}
}

// NewUserRequest builds the common single-part user message.
func NewUserRequest(text string) Message {
	return NewRequest(UserPrompt(text))
}

// NewSystemRequest builds a single-part system instruction message.
func NewSystemRequest(text string) Message {
	return NewRequest(SystemPrompt(text))
}

// NewTextResponse builds the common single-part assistant message.
func NewTextResponse(text string) Message {
	return NewResponse(TextPart(text))
}

// IsRequest reports whether the message came from the user/system side.
func (m Message) IsRequest() bool { return m.Kind == MessageRequest }

// HasToolCalls reports whether any part is a tool-call.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			return true
		}
	}
	return false
}

// HasToolReturns reports whether any part is a tool-return.
func (m Message) HasToolReturns() bool {
	for _, p := range m.Parts {
		if p.Kind == PartToolReturn {
			return true
		}
	}
	return false
}

// TextContent concatenates the content of every text part, used when a
// response needs to be shown or logged as plain prose.
func (m Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			out += p.Content
		}
	}
	return out
}
