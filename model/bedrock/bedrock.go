// Package bedrock provides a model wrapper for the AWS Bedrock Converse API,
// including streaming and tool use. Any Converse-capable model id works;
// credentials come from the default AWS chain.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/caarlos0/env/v9"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

// converseAPI abstracts the Bedrock runtime methods for testability.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the Bedrock model adapter. Per-request values on
// model.Request take precedence over the sampling defaults.
type Options struct {
	ModelID     string
	Region      string
	Temperature float64
	MaxTokens   int64
}

// Model wraps the Bedrock Converse API behind the generic model.Model interface.
type Model struct {
	client converseAPI
	opts   Options
}

// NewModel creates a new Bedrock model using the default AWS credential chain.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Model{client: bedrockruntime.NewFromConfig(awsCfg), opts: opts}, nil
}

// NewModelFromClient creates a new Bedrock model from an existing runtime client.
func NewModelFromClient(client *bedrockruntime.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

type envConfig struct {
	ModelID string `env:"BEDROCK_MODEL_ID"`
	Region  string `env:"AWS_REGION"`
}

// NewModelFromEnv creates a new Bedrock model configured from the process
// environment (BEDROCK_MODEL_ID, AWS_REGION) on top of the default AWS chain.
func NewModelFromEnv(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse bedrock env config: %w", err)
	}

	return NewModel(ctx, append([]func(o *Options){func(o *Options) {
		if cfg.ModelID != "" {
			o.ModelID = cfg.ModelID
		}
		if cfg.Region != "" {
			o.Region = cfg.Region
		}
	}}, optFns...)...)
}

func defaultOptions() Options {
	return Options{
		ModelID:     "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Region:      "us-east-1",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Converse API (with tool use) into model.Response events.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		input := m.buildInput(req)
		if req.Stream {
			m.handleStreaming(ctx, input, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, input, out, errCh)
	}()

	return out, errCh
}

func (m *Model) buildInput(req model.Request) *bedrockruntime.ConverseInput {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(m.opts.ModelID),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens)),
			Temperature: aws.Float32(float32(temperature)),
		},
	}
	if req.TopP != nil {
		input.InferenceConfig.TopP = aws.Float32(float32(*req.TopP))
	}

	for _, msg := range req.Contents {
		if msg.Role == core.RoleSystem {
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: msg.Content})
			continue
		}
		if converted := toBedrockMessage(msg); converted != nil {
			input.Messages = append(input.Messages, *converted)
		}
	}

	if len(req.Tools) > 0 {
		input.ToolConfig = toBedrockToolConfig(req.Tools)
	}

	return input
}

func toBedrockMessage(msg core.Message) *types.Message {
	out := &types.Message{}

	switch msg.Role {
	case core.RoleTool:
		// Tool results ride in user-role messages on the Converse API.
		out.Role = types.ConversationRoleUser
		out.Content = []types.ContentBlock{
			&types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(msg.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: msg.Content},
					},
				},
			},
		}

	case core.RoleAssistant:
		out.Role = types.ConversationRoleAssistant
		if msg.Content != "" {
			out.Content = append(out.Content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var inputDoc map[string]interface{}
			if tc.Arguments != "" {
				_ = json.Unmarshal([]byte(tc.Arguments), &inputDoc)
			}
			if inputDoc == nil {
				inputDoc = map[string]interface{}{}
			}
			out.Content = append(out.Content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

	case core.RoleUser:
		out.Role = types.ConversationRoleUser
		out.Content = []types.ContentBlock{
			&types.ContentBlockMemberText{Value: msg.Content},
		}

	default:
		return nil
	}

	return out
}

func toBedrockToolConfig(tools []model.ToolDefinition) *types.ToolConfiguration {
	var bedrockTools []types.Tool
	for _, t := range tools {
		schema := t.Function.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		bedrockTools = append(bedrockTools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Function.Name),
				Description: aws.String(t.Function.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

func (m *Model) handleNonStreaming(
	ctx context.Context,
	input *bedrockruntime.ConverseInput,
	out chan<- model.Response,
	errCh chan<- error,
) {
	output, err := m.client.Converse(ctx, input)
	if err != nil {
		errCh <- classify(err)
		return
	}

	resp := model.Response{
		Partial:      false,
		Message:      core.Message{Role: core.RoleAssistant},
		FinishReason: finishReason(output.StopReason),
	}
	if output.Usage != nil {
		resp.Usage = usageFrom(output.Usage.InputTokens, output.Usage.OutputTokens)
	}

	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				resp.Message.Content += b.Value
			case *types.ContentBlockMemberToolUse:
				resp.Message.ToolCalls = append(resp.Message.ToolCalls, core.ToolCall{
					ID:        aws.ToString(b.Value.ToolUseId),
					Name:      aws.ToString(b.Value.Name),
					Arguments: marshalDocument(b.Value.Input),
				})
			}
		}
	}

	out <- resp
}

// streamTool accumulates one tool call across block start and delta events.
type streamTool struct{ id, name, args string }

// handleStreaming forwards text deltas as partial responses and assembles the
// terminal response from the accumulated blocks and metadata events.
func (m *Model) handleStreaming(
	ctx context.Context,
	input *bedrockruntime.ConverseInput,
	out chan<- model.Response,
	errCh chan<- error,
) {
	output, err := m.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         input.ModelId,
		Messages:        input.Messages,
		System:          input.System,
		InferenceConfig: input.InferenceConfig,
		ToolConfig:      input.ToolConfig,
	})
	if err != nil {
		errCh <- classify(err)
		return
	}

	stream := output.GetStream()
	defer stream.Close()

	var (
		textBuilder strings.Builder
		toolAgg     = map[int32]*streamTool{}
		toolOrder   []int32
		usage       *model.TokenUsage
		stop        string
	)

	for evt := range stream.Events() {
		switch e := evt.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if start, ok := e.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				idx := aws.ToInt32(e.Value.ContentBlockIndex)
				toolAgg[idx] = &streamTool{
					id:   aws.ToString(start.Value.ToolUseId),
					name: aws.ToString(start.Value.Name),
				}
				toolOrder = append(toolOrder, idx)
			}

		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch d := e.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				textBuilder.WriteString(d.Value)
				select {
				case out <- model.Response{
					Partial: true,
					Message: core.Message{Role: core.RoleAssistant, Content: d.Value},
				}:
				case <-ctx.Done():
					return
				}
			case *types.ContentBlockDeltaMemberToolUse:
				idx := aws.ToInt32(e.Value.ContentBlockIndex)
				if agg, ok := toolAgg[idx]; ok {
					agg.args += aws.ToString(d.Value.Input)
				}
			}

		case *types.ConverseStreamOutputMemberMessageStop:
			stop = finishReason(e.Value.StopReason)

		case *types.ConverseStreamOutputMemberMetadata:
			if e.Value.Usage != nil {
				usage = usageFrom(e.Value.Usage.InputTokens, e.Value.Usage.OutputTokens)
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- classify(err)
		return
	}

	toolCalls := make([]core.ToolCall, 0, len(toolOrder))
	for _, idx := range toolOrder {
		agg := toolAgg[idx]
		args := agg.args
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, core.ToolCall{ID: agg.id, Name: agg.name, Arguments: args})
	}
	if stop == "" {
		stop = "stop"
	}

	out <- model.Response{
		Partial: false,
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   textBuilder.String(),
			ToolCalls: toolCalls,
		},
		FinishReason: stop,
		Usage:        usage,
	}
}

func usageFrom(in, outTokens *int32) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(aws.ToInt32(in)),
		CompletionTokens: int(aws.ToInt32(outTokens)),
		TotalTokens:      int(aws.ToInt32(in)) + int(aws.ToInt32(outTokens)),
	}
}

// marshalDocument converts a Bedrock document into a JSON argument string.
func marshalDocument(doc document.Interface) string {
	if doc == nil {
		return "{}"
	}
	var v interface{}
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// finishReason normalizes Converse stop reasons to the shared vocabulary.
func finishReason(stop types.StopReason) string {
	switch stop {
	case types.StopReasonToolUse:
		return "tool_calls"
	case types.StopReasonMaxTokens:
		return "length"
	case "":
		return "stop"
	default:
		return "stop"
	}
}

// classify maps AWS SDK failures into the uniform *model.ProviderError.
// Throttling and service-side faults are transient; auth and validation
// faults are terminal.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		transient := false
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException",
			"ServiceUnavailableException", "InternalServerException",
			"ModelNotReadyException", "ModelTimeoutException":
			transient = true
		}
		return &model.ProviderError{
			Provider:  "bedrock",
			Message:   fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()),
			Transient: transient,
			Err:       err,
		}
	}
	return model.NewProviderError("bedrock", 0, err)
}

// Info returns metadata describing this Bedrock model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.ModelID,
		Provider:      "bedrock",
		SupportsTools: true,
	}
}
