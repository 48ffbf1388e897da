package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// TestValidateToolPairs_Empty tests the trivial inputs.
func TestValidateToolPairs_Empty(t *testing.T) {
	assert.Empty(t, ValidateToolPairs(nil))
	assert.Empty(t, ValidateToolPairs([]ports.Message{}))
}

// TestValidateToolPairs_BalancedPairKept tests that a matched
// call/return exchange passes through untouched.
func TestValidateToolPairs_BalancedPairKept(t *testing.T) {
	history := []ports.Message{
		ports.NewUserRequest("find the history docs"),
		ports.NewResponse(ports.ToolCall("search_documents", json.RawMessage(`{"query":"history"}`))),
		ports.NewRequest(ports.ToolReturn("search_documents", "one match")),
		ports.NewTextResponse("Found it."),
	}

	assert.Equal(t, history, ValidateToolPairs(history))
}

// TestValidateToolPairs_OrphanReturnDropped tests the post-truncation
// repair: a suffix cut that opens on a tool-return loses that message
// whole, and the rest survives.
func TestValidateToolPairs_OrphanReturnDropped(t *testing.T) {
	history := []ports.Message{
		ports.NewUserRequest("look this up"),
		ports.NewResponse(ports.ToolCall("search_documents", nil)),
		ports.NewRequest(ports.ToolReturn("search_documents", "result")),
		ports.NewTextResponse("Here you go."),
	}

	cut := Truncate(history, 2, StrategySuffix)
	assert.Len(t, cut, 2) // opens on the orphaned tool-return

	got := ValidateToolPairs(cut)
	assert.Len(t, got, 1)
	assert.Equal(t, "Here you go.", got[0].TextContent())
}

// TestValidateToolPairs_TrailingCallKept tests that a call still awaiting
// its return is not pruned.
func TestValidateToolPairs_TrailingCallKept(t *testing.T) {
	history := []ports.Message{
		ports.NewUserRequest("search please"),
		ports.NewResponse(ports.ToolCall("search_documents", nil)),
	}

	assert.Equal(t, history, ValidateToolPairs(history))
}

// TestValidateToolPairs_MixedMessagePushesWithoutPopping tests branch
// priority: a message carrying both calls and returns counts as a call
// message, so its returns do not consume the pending queue.
func TestValidateToolPairs_MixedMessagePushesWithoutPopping(t *testing.T) {
	history := []ports.Message{
		ports.NewResponse(ports.ToolCall("first", nil)),
		ports.NewResponse(
			ports.ToolCall("second", nil),
			ports.ToolReturn("first", "early result"),
		),
		ports.NewRequest(ports.ToolReturn("first", "result a")),
		ports.NewRequest(ports.ToolReturn("second", "result b")),
		ports.NewRequest(ports.ToolReturn("nobody", "orphan")),
	}

	got := ValidateToolPairs(history)
	assert.Len(t, got, 4)
	assert.Equal(t, history[:4], got)
}

// TestValidateToolPairs_MultiReturnPopsUpToQueue tests that one message
// with several returns consumes at most what is pending and is still kept.
func TestValidateToolPairs_MultiReturnPopsUpToQueue(t *testing.T) {
	history := []ports.Message{
		ports.NewResponse(ports.ToolCall("only", nil)),
		ports.NewRequest(
			ports.ToolReturn("only", "first"),
			ports.ToolReturn("only", "second"),
		),
		ports.NewRequest(ports.ToolReturn("only", "third")),
	}

	got := ValidateToolPairs(history)
	// The double-return message drains the queue; the following return is
	// orphaned and dropped.
	assert.Len(t, got, 2)
	assert.Equal(t, history[:2], got)
}

// TestValidateToolPairs_NonToolUntouched tests that plain conversation
// passes through in order.
func TestValidateToolPairs_NonToolUntouched(t *testing.T) {
	history := makeHistory(6)
	assert.Equal(t, history, ValidateToolPairs(history))
}

// TestValidateToolPairs_Idempotent tests that a validated history passes a
// second validation unchanged.
func TestValidateToolPairs_Idempotent(t *testing.T) {
	history := []ports.Message{
		ports.NewRequest(ports.ToolReturn("search_documents", "orphan")),
		ports.NewUserRequest("hello"),
		ports.NewResponse(ports.ToolCall("search_documents", nil)),
		ports.NewRequest(ports.ToolReturn("search_documents", "match")),
		ports.NewTextResponse("done"),
	}

	once := ValidateToolPairs(history)
	assert.Len(t, once, 4)
	assert.Equal(t, once, ValidateToolPairs(once))
}
