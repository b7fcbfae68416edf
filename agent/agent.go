package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/internal/util"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/memory"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/tool"
)

// Defaults applied by New when the corresponding option is unset.
const (
	DefaultMaxIterations    = 5
	DefaultToolTimeout      = 15 * time.Second
	DefaultMaxParallelTools = 4
	DefaultMemoryTopK       = 3
)

// Options configure an Agent. All validation happens in New; the Agent is
// immutable afterwards and safe for concurrent use.
type Options struct {
	// Name identifies the agent in logs and fallback chains. Defaults to
	// the model name.
	Name string

	// Preamble becomes the system message. It may contain Go template
	// markers rendered with PreambleVars.
	Preamble     string
	PreambleVars map[string]any

	// Documents are reference texts appended to the system message.
	Documents []string

	// Sampling overrides forwarded to the model on every request.
	Temperature *float64
	TopP        *float64
	MaxTokens   *int64

	// MaxIterations bounds the number of model rounds per request.
	MaxIterations int
	// ToolTimeout bounds each individual tool invocation.
	ToolTimeout time.Duration
	// ToolNames restricts the agent to a subset of the registry. Empty
	// means all registered tools.
	ToolNames []string
	// MaxParallelTools bounds concurrent tool invocations within a round.
	MaxParallelTools int

	// Window trims replayed history before each model round.
	Window *memory.Window

	// MemoryStore enables recall: top-k hits for the latest user input are
	// appended to the system context.
	MemoryStore core.MemoryStore
	MemoryTopK  int

	Logger logging.Logger
}

// Agent drives the completion loop against one model and one tool registry.
type Agent struct {
	model    model.Model
	registry *tool.Registry
	opts     Options
	preamble string
	logger   logging.Logger
}

// New creates an Agent. Configuration is validated here: sampling ranges,
// the iteration bound, and every name in ToolNames resolving in the
// registry. A registry is optional for tool-less agents.
func New(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		MaxIterations:    DefaultMaxIterations,
		ToolTimeout:      DefaultToolTimeout,
		MaxParallelTools: DefaultMaxParallelTools,
		MemoryTopK:       DefaultMemoryTopK,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if m == nil {
		return nil, fmt.Errorf("agent: model is required")
	}
	if opts.Name == "" {
		opts.Name = m.Info().Name
	}
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("agent %s: max iterations must be positive, got %d", opts.Name, opts.MaxIterations)
	}
	if opts.Temperature != nil && (*opts.Temperature < 0 || *opts.Temperature > 2) {
		return nil, fmt.Errorf("agent %s: temperature must be in [0,2], got %v", opts.Name, *opts.Temperature)
	}
	if opts.TopP != nil && (*opts.TopP < 0 || *opts.TopP > 1) {
		return nil, fmt.Errorf("agent %s: top_p must be in [0,1], got %v", opts.Name, *opts.TopP)
	}
	if opts.MaxTokens != nil && *opts.MaxTokens <= 0 {
		return nil, fmt.Errorf("agent %s: max tokens must be positive, got %d", opts.Name, *opts.MaxTokens)
	}
	for _, name := range opts.ToolNames {
		if registry == nil || !registry.Has(name) {
			return nil, fmt.Errorf("agent %s: tool %q is not registered", opts.Name, name)
		}
	}

	preamble := opts.Preamble
	if preamble != "" {
		rendered, err := util.RenderTemplate(preamble, opts.PreambleVars)
		if err != nil {
			return nil, fmt.Errorf("agent %s: render preamble: %w", opts.Name, err)
		}
		preamble = rendered
	}

	return &Agent{
		model:    m,
		registry: registry,
		opts:     opts,
		preamble: preamble,
		logger:   logging.OrNoOp(opts.Logger),
	}, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.opts.Name }

// Prompt runs a single request from plain text: a fresh conversation is
// seeded with the system context and the input, and the final answer text
// is returned.
func (a *Agent) Prompt(ctx context.Context, input string) (string, error) {
	answer, _, err := a.Chat(ctx, core.Conversation{core.NewUserMessage(input)})
	return answer, err
}

// Chat runs the completion loop over an existing conversation. The caller's
// conversation value is never mutated; on success the augmented conversation
// is returned, on failure the caller's value is still the last good state.
func (a *Agent) Chat(ctx context.Context, conv core.Conversation) (string, core.Conversation, error) {
	working, err := a.seed(ctx, conv)
	if err != nil {
		return "", conv, err
	}
	return a.run(ctx, working)
}

// seed prepends the system message (preamble + documents + memory recall)
// when the conversation does not carry one yet.
func (a *Agent) seed(ctx context.Context, conv core.Conversation) (core.Conversation, error) {
	working := conv.Clone()

	if _, ok := working.System(); ok {
		return working, nil
	}

	var sections []string
	if a.preamble != "" {
		sections = append(sections, a.preamble)
	}
	for _, doc := range a.opts.Documents {
		sections = append(sections, doc)
	}

	if a.opts.MemoryStore != nil {
		if query := lastUserInput(working); query != "" {
			hits, err := a.opts.MemoryStore.Search(ctx, query, a.opts.MemoryTopK)
			if err != nil {
				return nil, fmt.Errorf("memory recall: %w", err)
			}
			if len(hits) > 0 {
				var b strings.Builder
				b.WriteString("Relevant context from memory:")
				for _, hit := range hits {
					b.WriteString("\n- ")
					b.WriteString(hit.Content)
				}
				sections = append(sections, b.String())
			}
		}
	}

	if len(sections) == 0 {
		return working, nil
	}

	seeded := make(core.Conversation, 0, len(working)+1)
	seeded = append(seeded, core.NewSystemMessage(strings.Join(sections, "\n\n")))
	seeded = append(seeded, working...)
	return seeded, nil
}

func lastUserInput(conv core.Conversation) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == core.RoleUser {
			return conv[i].Content
		}
	}
	return ""
}

// buildRequest assembles the model request for one round: windowed history
// plus the tool schemas this agent exposes.
func (a *Agent) buildRequest(conv core.Conversation, stream bool) model.Request {
	contents := conv
	if a.opts.Window != nil {
		contents = a.opts.Window.Apply(contents)
	}

	req := model.Request{
		Contents:    contents,
		Temperature: a.opts.Temperature,
		TopP:        a.opts.TopP,
		MaxTokens:   a.opts.MaxTokens,
		Stream:      stream,
	}
	if a.registry != nil {
		req.Tools = a.registry.Definitions(a.opts.ToolNames...)
	}
	return req
}
