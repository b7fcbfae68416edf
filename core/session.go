package core

import "time"

// Session is a named conversational container tracking one conversation and
// its bookkeeping timestamps. Unlike Conversation it is a mutable record
// owned by a SessionStore; stores hand out clones so callers can never alias
// internal state.
type Session struct {
	ID           string            `json:"id"`
	Conversation Conversation      `json:"conversation"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Created      time.Time         `json:"created"`
	Updated      time.Time         `json:"updated"`
}

// Clone performs a deep copy for safe divergence.
func (s *Session) Clone() *Session {
	c := *s
	c.Conversation = s.Conversation.Clone()
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
