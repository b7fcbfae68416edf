package core

import "github.com/google/uuid"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks the instruction message seeded at position zero.
	RoleSystem Role = "system"
	// RoleUser marks caller-supplied input.
	RoleUser Role = "user"
	// RoleAssistant marks model output, including tool call requests.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool execution outcome paired to a prior tool call.
	RoleTool Role = "tool"
)

// ToolCall is a model-issued request to invoke a named tool. Arguments is the
// raw JSON payload exactly as the provider produced it; it is parsed and
// validated by the tool registry, never here.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is a single immutable conversation turn. Construct messages through
// the New*Message helpers; treat a Message as read-only afterwards. ToolCalls
// is populated only on assistant messages, ToolCallID and Name only on tool
// messages.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// NewSystemMessage creates the instruction message for a conversation.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a caller input message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a plain text assistant reply.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolCallMessage creates an assistant message carrying tool call requests.
// Calls missing an ID are assigned one so result pairing stays well-defined
// even for providers that omit identifiers.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	copied := make([]ToolCall, len(calls))
	copy(copied, calls)
	for i := range copied {
		if copied[i].ID == "" {
			copied[i].ID = NewID()
		}
	}
	return Message{Role: RoleAssistant, Content: content, ToolCalls: copied}
}

// NewToolResultMessage creates a tool message pairing an execution outcome to
// the originating call via callID.
func NewToolResultMessage(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: toolName}
}

// HasToolCalls reports whether this assistant message requests tool execution.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// clone returns a deep copy so shared slices can never alias.
func (m Message) clone() Message {
	c := m
	if len(m.ToolCalls) > 0 {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(c.ToolCalls, m.ToolCalls)
	}
	return c
}

// NewID generates a unique identifier for tool calls and invocations.
func NewID() string { return uuid.NewString() }

// Conversation is an ordered message sequence with value semantics. It is
// replayed verbatim to the provider on every turn, so ordering is load
// bearing: the system message (if any) is first, and tool messages follow the
// assistant message whose calls they answer.
type Conversation []Message

// NewConversation builds a conversation from the given messages.
func NewConversation(messages ...Message) Conversation {
	conv := make(Conversation, len(messages))
	copy(conv, messages)
	return conv
}

// Append returns a new conversation with msgs added; the receiver is never
// mutated, which is what lets failed requests roll back for free.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make(Conversation, 0, len(c)+len(msgs))
	out = append(out, c...)
	out = append(out, msgs...)
	return out
}

// Clone deep-copies the conversation including tool call slices.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = m.clone()
	}
	return out
}

// System returns the system message and whether one exists. A well-formed
// conversation carries it at index zero only.
func (c Conversation) System() (Message, bool) {
	if len(c) > 0 && c[0].Role == RoleSystem {
		return c[0], true
	}
	return Message{}, false
}

// LastAssistant returns the most recent assistant message, if any.
func (c Conversation) LastAssistant() (Message, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleAssistant {
			return c[i], true
		}
	}
	return Message{}, false
}

// Validate checks the structural invariants: at most one system message and
// only at index zero, and every tool message answering a tool call that an
// earlier assistant message actually issued.
func (c Conversation) Validate() error {
	issued := map[string]bool{}
	for i, m := range c {
		if m.Role == RoleSystem && i != 0 {
			return &InvalidConversationError{Index: i, Reason: "system message must be first"}
		}
		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				issued[tc.ID] = true
			}
		case RoleTool:
			if m.ToolCallID == "" {
				return &InvalidConversationError{Index: i, Reason: "tool message missing tool_call_id"}
			}
			if !issued[m.ToolCallID] {
				return &InvalidConversationError{Index: i, Reason: "tool message references unknown tool_call_id " + m.ToolCallID}
			}
		}
	}
	return nil
}
