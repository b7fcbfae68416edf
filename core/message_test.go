package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Message Tests --------------------

func TestNewToolCallMessage_AssignsMissingIDs(t *testing.T) {
	msg := NewToolCallMessage("", []ToolCall{
		{Name: "calculator", Arguments: `{"a":1}`},
		{ID: "call_1", Name: "http_request"},
	})
	require.Len(t, msg.ToolCalls, 2)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	assert.Equal(t, "call_1", msg.ToolCalls[1].ID)
	assert.True(t, msg.HasToolCalls())
}

func TestNewToolCallMessage_CopiesInput(t *testing.T) {
	calls := []ToolCall{{ID: "c1", Name: "calculator"}}
	msg := NewToolCallMessage("", calls)
	calls[0].Name = "mutated"
	assert.Equal(t, "calculator", msg.ToolCalls[0].Name)
}

// -------------------- Conversation Tests --------------------

func TestConversation_AppendDoesNotMutateReceiver(t *testing.T) {
	base := NewConversation(NewSystemMessage("sys"), NewUserMessage("hi"))
	extended := base.Append(NewAssistantMessage("hello"))

	assert.Len(t, base, 2)
	assert.Len(t, extended, 3)

	// Appending to base again must not leak into extended.
	other := base.Append(NewAssistantMessage("other"))
	assert.Equal(t, "hello", extended[2].Content)
	assert.Equal(t, "other", other[2].Content)
}

func TestConversation_CloneIsDeep(t *testing.T) {
	conv := NewConversation(NewToolCallMessage("", []ToolCall{{ID: "c1", Name: "calculator"}}))
	clone := conv.Clone()
	clone[0].ToolCalls[0].Name = "mutated"
	assert.Equal(t, "calculator", conv[0].ToolCalls[0].Name)
}

func TestConversation_System(t *testing.T) {
	conv := NewConversation(NewSystemMessage("sys"), NewUserMessage("hi"))
	sys, ok := conv.System()
	assert.True(t, ok)
	assert.Equal(t, "sys", sys.Content)

	_, ok = NewConversation(NewUserMessage("hi")).System()
	assert.False(t, ok)
}

func TestConversation_Validate(t *testing.T) {
	valid := NewConversation(
		NewSystemMessage("sys"),
		NewUserMessage("add"),
		NewToolCallMessage("", []ToolCall{{ID: "c1", Name: "calculator"}}),
		NewToolResultMessage("c1", "calculator", "3"),
	)
	assert.NoError(t, valid.Validate())

	misplacedSystem := NewConversation(NewUserMessage("hi"), NewSystemMessage("sys"))
	var invalidErr *InvalidConversationError
	require.ErrorAs(t, misplacedSystem.Validate(), &invalidErr)
	assert.Equal(t, 1, invalidErr.Index)

	orphanResult := NewConversation(NewToolResultMessage("missing", "calculator", "3"))
	assert.Error(t, orphanResult.Validate())
}

// -------------------- Error Tests --------------------

func TestCancelledError_PreservesContextCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCancelledError("agent.chat", ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, IsCancelled(err))
	assert.Contains(t, err.Error(), "agent.chat")
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := &Session{
		ID:           "s1",
		Conversation: NewConversation(NewUserMessage("hi")),
		Metadata:     map[string]string{"k": "v"},
	}
	c := s.Clone()
	c.Conversation = c.Conversation.Append(NewAssistantMessage("hello"))
	c.Metadata["k"] = "mutated"

	assert.Len(t, s.Conversation, 1)
	assert.Equal(t, "v", s.Metadata["k"])
}
