// Package anthropic provides a model wrapper for the Anthropic Claude API,
// including streaming and tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/caarlos0/env/v9"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

// Options configures the Anthropic model adapter (model id, sampling
// defaults, API key). Per-request values on model.Request take precedence
// over the sampling defaults.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

type envConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY,notEmpty"`
	Model  string `env:"ANTHROPIC_MODEL"`
}

// NewModelFromEnv creates a new Anthropic model configured from the process
// environment (ANTHROPIC_API_KEY, optional ANTHROPIC_MODEL).
func NewModelFromEnv(optFns ...func(o *Options)) (*Model, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse anthropic env config: %w", err)
	}

	m := NewModel(append([]func(o *Options){func(o *Options) {
		o.APIKey = cfg.APIKey
	}}, optFns...)...)
	if cfg.Model != "" {
		m.opts.Model = anthropic.Model(cfg.Model)
	}
	return m, nil
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Anthropic Messages API (with tool use) into model.Response events.
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

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Contents),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}

	if systemBlocks := extractSystemBlocks(req.Contents); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// buildMessages converts the normalized conversation to the Anthropic message
// format. Tool results become tool_result blocks inside user messages, which
// is how the Messages API expects them; consecutive tool results are folded
// into a single user message.
func buildMessages(conv core.Conversation) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range conv {
		switch msg.Role {
		case core.RoleSystem:
			continue // handled separately via params.System
		case core.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case core.RoleUser:
			flushResults()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case core.RoleAssistant:
			flushResults()
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input interface{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments // fallback to string
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			flushResults()
			if msg.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	flushResults()

	return messages
}

// extractSystemBlocks pulls system messages out of the conversation.
func extractSystemBlocks(conv core.Conversation) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam
	for _, msg := range conv {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return systemBlocks
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := params["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
	}

	return anthropicTools
}

func (m *Model) handleNonStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- classify(err)
		return
	}
	out <- buildResponse(resp)
}

// handleStreaming forwards text deltas as partial responses and emits the
// accumulated message as the terminal response.
func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- classify(fmt.Errorf("accumulate stream event: %w", err))
			return
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if d.Text != "" {
					out <- model.Response{
						ID:      acc.ID,
						Partial: true,
						Message: core.Message{Role: core.RoleAssistant, Content: d.Text},
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- classify(err)
		return
	}
	out <- buildResponse(&acc)
}

// buildResponse converts a complete Anthropic message into the terminal response.
func buildResponse(resp *anthropic.Message) model.Response {
	var (
		text      string
		toolCalls []core.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			toolCalls = append(toolCalls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	return model.Response{
		ID:      resp.ID,
		Partial: false,
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   text,
			ToolCalls: toolCalls,
		},
		FinishReason: finishReason(resp.StopReason),
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

// finishReason normalizes Anthropic stop reasons to the shared vocabulary.
func finishReason(stop anthropic.StopReason) string {
	switch stop {
	case anthropic.StopReasonToolUse:
		return "tool_calls"
	case anthropic.StopReasonMaxTokens:
		return "length"
	case "":
		return "stop"
	default:
		return "stop"
	}
}

// classify converts an SDK error into the uniform *model.ProviderError.
func classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return model.NewProviderError("anthropic", apierr.StatusCode, err)
	}
	return model.NewProviderError("anthropic", 0, err)
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
