package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
	"github.com/hupe1980/agentkit/tool"
)

func collectChunks(t *testing.T, s *Stream) string {
	t.Helper()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Current().Text)
	}
	return b.String()
}

func TestStream_TextChunks(t *testing.T) {
	mock := model.NewMockModel("test-model").AddResponse("Hello, world!")
	a, err := New(mock, nil)
	require.NoError(t, err)

	s, err := a.Stream(context.Background(), core.Conversation{core.NewUserMessage("greet me")})
	require.NoError(t, err)

	text := collectChunks(t, s)
	require.NoError(t, s.Err())
	assert.Equal(t, "Hello, world!", text)
	assert.False(t, s.Interrupted())

	conv := s.Conversation()
	require.Len(t, conv, 2)
	assert.Equal(t, "Hello, world!", conv[1].Content)
}

func TestStream_ToolInterruptionAndResume(t *testing.T) {
	mock := model.NewMockModel("test-model").
		AddToolCalls(core.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"operation":"multiply","a":6,"b":7}`}).
		AddResponse("The product is 42.")

	a, err := New(mock, calculatorRegistry(t))
	require.NoError(t, err)

	s, err := a.Stream(context.Background(), core.Conversation{core.NewUserMessage("what is 6*7?")})
	require.NoError(t, err)

	// Tool-call turn produces no text; the chunk sequence is finite.
	text := collectChunks(t, s)
	require.NoError(t, s.Err())
	assert.Empty(t, text)
	assert.True(t, s.Interrupted())

	// The conversation tail is the executed tool round.
	conv := s.Conversation()
	require.Len(t, conv, 3) // user, assistant(tool_calls), tool
	assert.True(t, conv[1].HasToolCalls())
	assert.Equal(t, core.RoleTool, conv[2].Role)
	assert.Equal(t, "42", conv[2].Content)

	// Re-streaming from the augmented conversation yields the final answer.
	s2, err := a.Stream(context.Background(), conv)
	require.NoError(t, err)
	text = collectChunks(t, s2)
	require.NoError(t, s2.Err())
	assert.Equal(t, "The product is 42.", text)
	assert.False(t, s2.Interrupted())
}

func TestStream_ErrorTerminatesSequence(t *testing.T) {
	pe := &model.ProviderError{Provider: "mock", StatusCode: 500, Message: "boom", Transient: true}
	mock := model.NewMockModel("test-model").AddError(pe)

	a, err := New(mock, nil)
	require.NoError(t, err)

	s, err := a.Stream(context.Background(), core.Conversation{core.NewUserMessage("hi")})
	require.NoError(t, err)

	assert.False(t, s.Next())
	var got *model.ProviderError
	require.ErrorAs(t, s.Err(), &got)
	assert.Nil(t, s.Conversation())
}

func TestStream_CloseAbandonsSession(t *testing.T) {
	mock := model.NewMockModel("test-model").AddResponse(strings.Repeat("chunky text ", 50))
	a, err := New(mock, nil)
	require.NoError(t, err)

	s, err := a.Stream(context.Background(), core.Conversation{core.NewUserMessage("hi")})
	require.NoError(t, err)

	require.True(t, s.Next()) // consume one chunk, then abandon
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	assert.False(t, s.Next())
}

func TestStream_ToolFailureFeedsBack(t *testing.T) {
	r := tool.NewRegistry()
	failing := tool.NewFunctionTool("flaky", "Always fails", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, assert.AnError
		})
	require.NoError(t, r.Register(failing))

	mock := model.NewMockModel("test-model").
		AddToolCalls(core.ToolCall{ID: "c1", Name: "flaky", Arguments: `{}`})

	a, err := New(mock, r)
	require.NoError(t, err)

	s, err := a.Stream(context.Background(), core.Conversation{core.NewUserMessage("hi")})
	require.NoError(t, err)

	collectChunks(t, s)
	require.NoError(t, s.Err())
	assert.True(t, s.Interrupted())

	conv := s.Conversation()
	assert.Contains(t, conv[len(conv)-1].Content, "Error:")
}
