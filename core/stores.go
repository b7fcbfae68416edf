package core

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by SessionStore.Get for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions for multi-turn chat. Implementations live in
// the session package; the contract stays here so higher layers depend on
// core only.
//
// Contract:
//   - Get returns ErrSessionNotFound for unknown ids
//   - Returned sessions are clones; mutating them does not affect the store
//     until Save is called
//   - Save replaces the stored session wholesale (commit semantics)
type SessionStore interface {
	Create(ctx context.Context, conv Conversation, metadata map[string]string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryHit is a single recall result returned by MemoryStore.Search.
type MemoryHit struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MemoryStore provides long-lived recall over past conversation text. Agents
// optionally query it when assembling the system context for a request.
type MemoryStore interface {
	Add(ctx context.Context, content string, metadata map[string]string) (string, error)
	Search(ctx context.Context, query string, limit int) ([]MemoryHit, error)
}
