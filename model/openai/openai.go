// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including streaming + function/tool calling). It
// adapts the normalized Request/Response structures into the SDK's message
// format and back.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete tool calls when the finish reason is
// emitted. Internal helper (unexported).
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter. The sampling fields are
// defaults; per-request values on model.Request take precedence.
type Options struct {
	Model               string
	Temperature         float64
	TopP                float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

type envConfig struct {
	APIKey  string `env:"OPENAI_API_KEY,notEmpty"`
	BaseURL string `env:"OPENAI_BASE_URL"`
	Model   string `env:"OPENAI_MODEL"`
}

// NewModelFromEnv creates a new OpenAI model configured from the process
// environment (OPENAI_API_KEY, optional OPENAI_BASE_URL and OPENAI_MODEL).
func NewModelFromEnv(optFns ...func(o *Options)) (*Model, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse openai env config: %w", err)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	m := NewModelFromClient(&client, optFns...)
	if cfg.Model != "" {
		m.opts.Model = cfg.Model
	}
	return m, nil
}

// Generate implements unified streaming / non-streaming generation.
// It adapts OpenAI Chat Completions (with tool calling) into model.Response events.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req)
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildMessages converts the normalized conversation into OpenAI chat
// messages. Tool results keep their position in the conversation, so pairing
// with the preceding assistant tool calls is preserved as-is.
func buildMessages(conv core.Conversation) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range conv {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case core.RoleAssistant:
			if !msg.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			messages = append(
				messages,
				openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				}},
			)
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			if msg.Content != "" {
				messages = append(messages, openai.UserMessage(msg.Content))
			}
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := m.opts.MaxCompletionTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Contents),
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	} else if m.opts.TopP > 0 {
		params.TopP = openai.Float(m.opts.TopP)
	}

	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var textBuilder strings.Builder
	toolAgg := map[int64]*aggCall{}
	var responseID string
	for stream.Next() {
		ck := stream.Current()
		if responseID == "" {
			responseID = ck.ID
		}
		for _, ch := range ck.Choices {
			m.emitTextDelta(responseID, ch, &textBuilder, out)
			m.emitToolCallDeltas(responseID, ch, toolAgg, out)
			if ch.FinishReason != "" {
				m.emitFinalChunk(responseID, ch, &textBuilder, toolAgg, out)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- classify(err)
	}
}

func (m *Model) emitTextDelta(
	id string,
	ch openai.ChatCompletionChunkChoice,
	builder *strings.Builder,
	out chan<- model.Response,
) {
	if ch.Delta.Content == "" {
		return
	}
	builder.WriteString(ch.Delta.Content)
	out <- model.Response{
		ID:      id,
		Partial: true,
		Message: core.Message{Role: core.RoleAssistant, Content: ch.Delta.Content},
	}
}

func (m *Model) emitToolCallDeltas(
	id string,
	ch openai.ChatCompletionChunkChoice,
	agg map[int64]*aggCall,
	out chan<- model.Response,
) {
	for _, tc := range ch.Delta.ToolCalls {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			ac.args += tc.Function.Arguments
		}
		out <- model.Response{
			ID:      id,
			Partial: true,
			Message: core.Message{
				Role:      core.RoleAssistant,
				ToolCalls: []core.ToolCall{{ID: ac.id, Name: ac.name, Arguments: ac.args}},
			},
		}
	}
}

func (m *Model) emitFinalChunk(
	id string,
	ch openai.ChatCompletionChunkChoice,
	builder *strings.Builder,
	toolAgg map[int64]*aggCall,
	out chan<- model.Response,
) {
	indices := make([]int64, 0, len(toolAgg))
	for idx := range toolAgg {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	toolCalls := make([]core.ToolCall, 0, len(indices))
	for _, idx := range indices {
		ac := toolAgg[idx]
		toolCalls = append(toolCalls, core.ToolCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
	}
	out <- model.Response{
		ID:      id,
		Partial: false,
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   builder.String(),
			ToolCalls: toolCalls,
		},
		FinishReason: ch.FinishReason,
	}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- classify(err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- &model.ProviderError{Provider: "openai", Message: "no choices returned", Transient: true}
		return
	}
	ch0 := resp.Choices[0]
	toolCalls := make([]core.ToolCall, 0, len(ch0.Message.ToolCalls))
	for _, tc := range ch0.Message.ToolCalls {
		toolCalls = append(toolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	out <- model.Response{
		ID:      resp.ID,
		Partial: false,
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   ch0.Message.Content,
			ToolCalls: toolCalls,
		},
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// classify converts an SDK error into the uniform *model.ProviderError,
// reading the HTTP status from the API error when one is present.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return model.NewProviderError("openai", apierr.StatusCode, err)
	}
	return model.NewProviderError("openai", 0, err)
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
