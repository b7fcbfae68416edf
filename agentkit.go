// Package agentkit is a toolkit for building tool-augmented LLM agents: a
// normalized message model, a validating tool registry, provider adapters
// (OpenAI, Anthropic, Bedrock), an orchestration loop with fallback, and
// streaming sessions.
//
// The Kit façade routes requests to named agents, bounds concurrency and
// wires default stores. Smaller programs can use the agent and tool
// packages directly.
package agentkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentkit/agent"
	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/memory"
	"github.com/hupe1980/agentkit/session"
)

// Options configure a Kit.
type Options struct {
	// MaxConcurrentRequests bounds in-flight requests across all agents;
	// 0 disables the bound.
	MaxConcurrentRequests int

	// SessionStore backs session-threaded chat; defaults to the in-memory
	// store.
	SessionStore core.SessionStore
	// MemoryStore is exposed for agents that want recall; defaults to the
	// in-memory store.
	MemoryStore core.MemoryStore

	Logger logging.Logger
}

// Kit is a façade over a set of named agents. It is safe for concurrent use
// after the agents are registered.
type Kit struct {
	mu      sync.RWMutex
	runners map[string]agent.Runner

	sessions core.SessionStore
	memory   core.MemoryStore
	sem      chan struct{}
	logger   logging.Logger
}

// New creates a Kit with default in-memory stores.
func New(optFns ...func(o *Options)) *Kit {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	var sem chan struct{}
	if opts.MaxConcurrentRequests > 0 {
		sem = make(chan struct{}, opts.MaxConcurrentRequests)
	}

	return &Kit{
		runners:  make(map[string]agent.Runner),
		sessions: opts.SessionStore,
		memory:   opts.MemoryStore,
		sem:      sem,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Register adds a named agent. Registering the same name twice is an error.
func (k *Kit) Register(name string, r agent.Runner) error {
	if name == "" {
		return fmt.Errorf("agentkit: agent name must not be empty")
	}
	if r == nil {
		return fmt.Errorf("agentkit: agent %q is nil", name)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.runners[name]; exists {
		return fmt.Errorf("agentkit: agent %q is already registered", name)
	}
	k.runners[name] = r
	k.logger.Info("kit.agent.registered", "agent", name)
	return nil
}

// Runner returns the agent registered under name.
func (k *Kit) Runner(name string) (agent.Runner, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	r, ok := k.runners[name]
	if !ok {
		return nil, fmt.Errorf("agentkit: no agent registered as %q", name)
	}
	return r, nil
}

// Names returns all registered agent names, sorted.
func (k *Kit) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, 0, len(k.runners))
	for name := range k.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sessions returns the session store.
func (k *Kit) Sessions() core.SessionStore { return k.sessions }

// Memory returns the memory store.
func (k *Kit) Memory() core.MemoryStore { return k.memory }

// Prompt routes a one-shot request to the named agent.
func (k *Kit) Prompt(ctx context.Context, agentName, input string) (string, error) {
	r, err := k.Runner(agentName)
	if err != nil {
		return "", err
	}
	release, err := k.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	return r.Prompt(ctx, input)
}

// Chat routes a conversation to the named agent.
func (k *Kit) Chat(ctx context.Context, agentName string, conv core.Conversation) (string, core.Conversation, error) {
	r, err := k.Runner(agentName)
	if err != nil {
		return "", conv, err
	}
	release, err := k.acquire(ctx)
	if err != nil {
		return "", conv, err
	}
	defer release()

	return r.Chat(ctx, conv)
}

// Stream routes a streaming request to the named agent. The concurrency slot
// is held until the returned session ends or is closed.
func (k *Kit) Stream(ctx context.Context, agentName string, conv core.Conversation) (*agent.Stream, error) {
	r, err := k.Runner(agentName)
	if err != nil {
		return nil, err
	}
	release, err := k.acquire(ctx)
	if err != nil {
		return nil, err
	}

	s, err := r.Stream(ctx, conv)
	if err != nil {
		release()
		return nil, err
	}

	// The producer finishes on completion, failure, Close and context
	// cancellation alike, so the slot always comes back.
	go func() {
		<-s.Done()
		release()
	}()
	return s, nil
}

// CreateSession opens a new stored conversation session.
func (k *Kit) CreateSession(ctx context.Context, metadata map[string]string) (*core.Session, error) {
	return k.sessions.Create(ctx, nil, metadata)
}

// ChatSession appends the input to a stored session, runs the named agent
// and persists the augmented conversation. Persistence is commit-on-success:
// a failed request leaves the stored session exactly as it was.
func (k *Kit) ChatSession(ctx context.Context, agentName, sessionID, input string) (string, error) {
	sess, err := k.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	r, err := k.Runner(agentName)
	if err != nil {
		return "", err
	}
	release, err := k.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	conv := sess.Conversation.Append(core.NewUserMessage(input))
	answer, augmented, err := r.Chat(ctx, conv)
	if err != nil {
		return "", err
	}

	sess.Conversation = augmented
	if err := k.sessions.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("persist session %s: %w", sessionID, err)
	}

	k.logger.Debug("kit.session.chat", "agent", agentName, "session", sessionID, "messages", len(augmented))
	return answer, nil
}

// acquire takes a concurrency slot, returning a release func. When the Kit
// is unbounded both are no-ops.
func (k *Kit) acquire(ctx context.Context) (func(), error) {
	if k.sem == nil {
		return func() {}, nil
	}
	select {
	case k.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-k.sem })
		}, nil
	case <-ctx.Done():
		return nil, core.NewCancelledError("kit.acquire", ctx)
	}
}
