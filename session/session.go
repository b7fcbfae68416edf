// Package session provides conversation session persistence. The in-memory
// implementation is the default backing store; the core.SessionStore
// interface allows swapping in durable storage.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hupe1980/agentkit/core"
)

// InMemoryStore is a thread-safe, process-local core.SessionStore. Sessions
// are keyed by ULID so listing in ID order is also creation order. All reads
// and writes deep-clone, so callers can never mutate shared state through a
// returned session.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore creates an empty session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create implements core.SessionStore. A new ULID is assigned; any ID on the
// input is ignored.
func (s *InMemoryStore) Create(ctx context.Context, conv core.Conversation, metadata map[string]string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCancelledError("session.create", ctx)
	}

	now := time.Now().UTC()
	sess := &core.Session{
		ID:           ulid.Make().String(),
		Conversation: conv.Clone(),
		Metadata:     cloneMetadata(metadata),
		Created:      now,
		Updated:      now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.Clone(), nil
}

// Get implements core.SessionStore.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCancelledError("session.get", ctx)
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Save implements core.SessionStore, replacing the stored conversation and
// metadata and bumping the updated timestamp.
func (s *InMemoryStore) Save(ctx context.Context, sess *core.Session) error {
	if err := ctx.Err(); err != nil {
		return core.NewCancelledError("session.save", ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sess.ID]
	if !ok {
		return core.ErrSessionNotFound
	}

	stored.Conversation = sess.Conversation.Clone()
	stored.Metadata = cloneMetadata(sess.Metadata)
	stored.Updated = time.Now().UTC()
	return nil
}

// Delete implements core.SessionStore.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return core.NewCancelledError("session.delete", ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return core.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// List implements core.SessionStore, returning session IDs in creation order.
func (s *InMemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCancelledError("session.list", ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids) // ULIDs sort lexicographically by creation time
	return ids, nil
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
