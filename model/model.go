package model

import (
	"context"

	"github.com/hupe1980/agentkit/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// The Parameters schema is byte-for-byte the schema the tool registry
// validates against, so the wire contract and the enforcement never drift.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by agents. Sampling
// fields are pointers so "not set" falls through to the adapter's defaults.
type Request struct {
	Contents    core.Conversation `json:"contents"`
	Tools       []ToolDefinition  `json:"tools,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	MaxTokens   *int64            `json:"max_tokens,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry text deltas; the terminal chunk carries the complete assistant
// message including any tool call requests.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "bedrock", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Both channels
// are closed by the implementation when the round is over; abandoning a
// streaming round is done by cancelling ctx, which implementations must
// observe so the underlying transport is released.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete runs a single non-streaming round against m and returns the final
// response, which may carry tool call requests. Cancellation surfaces as
// *core.CancelledError; provider failures surface unchanged (adapters emit
// *ProviderError).
func Complete(ctx context.Context, m Model, req Request) (*Response, error) {
	req.Stream = false
	respCh, errCh := m.Generate(ctx, req)

	var final *Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, core.NewCancelledError("model.complete", ctx)
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				r := resp
				final = &r
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if final == nil {
		return nil, &ProviderError{
			Provider:  m.Info().Provider,
			Message:   "provider emitted no final response",
			Transient: true,
		}
	}
	return final, nil
}
