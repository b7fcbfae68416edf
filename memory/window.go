package memory

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/hupe1980/agentkit/core"
)

// TokenCounter estimates the token cost of a message for window budgeting.
type TokenCounter interface {
	Count(msg core.Message) int
}

// HeuristicCounter estimates tokens as bytes/4. Cheap and encoding-free;
// accurate enough for trimming decisions.
type HeuristicCounter struct{}

// Count implements TokenCounter.
func (HeuristicCounter) Count(msg core.Message) int {
	n := len(msg.Content)
	for _, tc := range msg.ToolCalls {
		n += len(tc.Name) + len(tc.Arguments)
	}
	count := n / 4
	if count == 0 {
		count = 1
	}
	return count
}

// TiktokenCounter counts tokens with a real BPE encoding. Falls back to the
// heuristic when the encoding cannot be loaded (offline environments).
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the given encoding name, e.g.
// "cl100k_base".
func NewTiktokenCounter(encodingName string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// Count implements TokenCounter.
func (c *TiktokenCounter) Count(msg core.Message) int {
	text := msg.Content
	for _, tc := range msg.ToolCalls {
		text += tc.Name + tc.Arguments
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Window trims a conversation to fit message and token budgets. The system
// message always survives, trimming drops the oldest messages first, and an
// assistant tool call message is never separated from its tool results (the
// pair is dropped or kept together, because providers reject orphans).
type Window struct {
	// MaxMessages caps the number of messages after trimming; 0 disables.
	MaxMessages int
	// MaxTokens caps the estimated token total after trimming; 0 disables.
	MaxTokens int
	// Counter estimates token costs; defaults to HeuristicCounter.
	Counter TokenCounter
}

// Apply returns a trimmed copy of the conversation. The input is not mutated.
func (w Window) Apply(conv core.Conversation) core.Conversation {
	if len(conv) == 0 || (w.MaxMessages <= 0 && w.MaxTokens <= 0) {
		return conv
	}

	counter := w.Counter
	if counter == nil {
		counter = HeuristicCounter{}
	}

	var system *core.Message
	rest := conv
	if conv[0].Role == core.RoleSystem {
		system = &conv[0]
		rest = conv[1:]
	}

	// Group messages so a tool call round (assistant + its tool results)
	// trims atomically.
	groups := groupRounds(rest)

	budgetMessages := w.MaxMessages
	if system != nil && budgetMessages > 0 {
		budgetMessages--
	}
	budgetTokens := w.MaxTokens
	if system != nil && budgetTokens > 0 {
		budgetTokens -= counter.Count(*system)
	}

	// Walk groups newest-first, keeping while budgets allow.
	kept := make([][]core.Message, 0, len(groups))
	messages, tokens := 0, 0
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		gTokens := 0
		for _, msg := range g {
			gTokens += counter.Count(msg)
		}
		if w.MaxMessages > 0 && messages+len(g) > budgetMessages {
			break
		}
		if w.MaxTokens > 0 && tokens+gTokens > budgetTokens {
			break
		}
		kept = append(kept, g)
		messages += len(g)
		tokens += gTokens
	}

	out := make(core.Conversation, 0, messages+1)
	if system != nil {
		out = append(out, *system)
	}
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i]...)
	}
	return out
}

// groupRounds splits a conversation into atomic groups: an assistant message
// carrying tool calls is grouped with the tool results that follow it; every
// other message stands alone.
func groupRounds(conv core.Conversation) [][]core.Message {
	var groups [][]core.Message
	for i := 0; i < len(conv); i++ {
		msg := conv[i]
		if msg.Role == core.RoleAssistant && msg.HasToolCalls() {
			group := []core.Message{msg}
			for i+1 < len(conv) && conv[i+1].Role == core.RoleTool {
				i++
				group = append(group, conv[i])
			}
			groups = append(groups, group)
			continue
		}
		groups = append(groups, []core.Message{msg})
	}
	return groups
}
