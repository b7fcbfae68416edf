package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/core"
)

// -------------------- Complete Tests --------------------

func TestComplete_ReturnsFinalResponse(t *testing.T) {
	m := NewMockModel("test").AddResponse("hello")

	resp, err := Complete(context.Background(), m, Request{
		Contents: core.NewConversation(core.NewUserMessage("hi")),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.False(t, resp.Partial)
}

func TestComplete_SurfacesScriptedError(t *testing.T) {
	scripted := &ProviderError{Provider: "mock", StatusCode: 500, Message: "boom", Transient: true}
	m := NewMockModel("test").AddError(scripted)

	_, err := Complete(context.Background(), m, Request{
		Contents: core.NewConversation(core.NewUserMessage("hi")),
	})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Transient)
}

func TestComplete_DeterministicReplay(t *testing.T) {
	conv := core.NewConversation(
		core.NewSystemMessage("sys"),
		core.NewUserMessage("what is 2+2"),
	)
	first, err := Complete(context.Background(), NewMockModel("a"), Request{Contents: conv})
	require.NoError(t, err)
	second, err := Complete(context.Background(), NewMockModel("b"), Request{Contents: conv})
	require.NoError(t, err)
	assert.Equal(t, first.Message.Content, second.Message.Content)
}

// blockingModel never emits anything until its context ends.
type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, _ Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		<-ctx.Done()
	}()
	return respCh, errCh
}

func (blockingModel) Info() Info { return Info{Name: "blocking", Provider: "test"} }

func TestComplete_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Complete(ctx, blockingModel{}, Request{Contents: core.NewConversation(core.NewUserMessage("hi"))})
	var ce *core.CancelledError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, context.Canceled))
}

// -------------------- MockModel Tests --------------------

func TestMockModel_ScriptOrderAndCapture(t *testing.T) {
	m := NewMockModel("test").
		AddToolCalls(core.ToolCall{ID: "c1", Name: "calculator", Arguments: `{"a":1}`}).
		AddResponse("done")

	resp, err := Complete(context.Background(), m, Request{
		Contents: core.NewConversation(core.NewUserMessage("go")),
	})
	require.NoError(t, err)
	require.True(t, resp.Message.HasToolCalls())
	assert.Equal(t, "tool_calls", resp.FinishReason)

	resp, err = Complete(context.Background(), m, Request{
		Contents: core.NewConversation(core.NewUserMessage("again")),
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Message.Content)

	require.Equal(t, 2, m.Calls())
	assert.Equal(t, "go", m.Requests()[0].Contents[0].Content)
}

func TestMockModel_StreamingEmitsPartials(t *testing.T) {
	m := NewMockModel("test").AddResponse("abc")
	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: core.NewConversation(core.NewUserMessage("hi")),
		Stream:   true,
	})

	var partials int
	var final *Response
	for resp := range respCh {
		if resp.Partial {
			partials++
		} else {
			r := resp
			final = &r
		}
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, 3, partials)
	require.NotNil(t, final)
	assert.Equal(t, "abc", final.Message.Content)
}

// -------------------- Error Classification Tests --------------------

func TestProviderError_Classification(t *testing.T) {
	assert.True(t, TransientStatus(429))
	assert.True(t, TransientStatus(408))
	assert.True(t, TransientStatus(500))
	assert.True(t, TransientStatus(503))
	assert.False(t, TransientStatus(400))
	assert.False(t, TransientStatus(401))
	assert.False(t, TransientStatus(404))

	transient := NewProviderError("openai", 429, errors.New("rate limited"))
	assert.True(t, IsTransient(transient))

	terminal := NewProviderError("openai", 401, errors.New("bad key"))
	assert.False(t, IsTransient(terminal))

	// Wrapped errors are still classified through the chain.
	wrapped := errors.Join(errors.New("context"), transient)
	assert.True(t, IsTransient(wrapped))

	assert.False(t, IsTransient(errors.New("plain")))
}

// -------------------- Rate Limiter Tests --------------------

func TestRateLimited_DelaysSecondCall(t *testing.T) {
	inner := NewMockModel("test").AddResponse("a").AddResponse("b")
	// 60 rpm => one token per second, burst 1.
	limited := NewRateLimited(inner, 60, 1)

	req := Request{Contents: core.NewConversation(core.NewUserMessage("hi"))}

	start := time.Now()
	_, err := Complete(context.Background(), limited, req)
	require.NoError(t, err)
	_, err = Complete(context.Background(), limited, req)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestRateLimited_CancelledWhileWaiting(t *testing.T) {
	inner := NewMockModel("test").AddResponse("a").AddResponse("b")
	limited := NewRateLimited(inner, 1, 1) // one request per minute

	req := Request{Contents: core.NewConversation(core.NewUserMessage("hi"))}
	_, err := Complete(context.Background(), limited, req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Complete(ctx, limited, req)
	require.Error(t, err)
}
