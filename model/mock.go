package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentkit/core"
)

// MockModel is a scripted in-memory Model for tests and examples. Steps are
// consumed in order, one per Generate call; each step is either a final
// response or an error. With no (remaining) script, it deterministically
// echoes the last user message so replaying the same conversation yields the
// same answer.
type MockModel struct {
	mu         sync.Mutex
	info       Info
	steps      []mockStep
	cursor     int
	repeatLast bool
	requests   []Request
}

type mockStep struct {
	message      core.Message
	finishReason string
	err          error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// AddResponse scripts a final text answer for the next unscripted call.
func (m *MockModel) AddResponse(text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{
		message:      core.NewAssistantMessage(text),
		finishReason: "stop",
	})
	return m
}

// AddToolCalls scripts a round that requests the given tool invocations.
func (m *MockModel) AddToolCalls(calls ...core.ToolCall) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{
		message:      core.NewToolCallMessage("", calls),
		finishReason: "tool_calls",
	})
	return m
}

// AddError scripts a failing round.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
	return m
}

// RepeatLast makes the final scripted step repeat forever once the script is
// exhausted. Useful for driving iteration-bound tests with a model that never
// stops requesting tools.
func (m *MockModel) RepeatLast() *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatLast = true
	return m
}

// Requests returns a copy of every Request received so far, in order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations observed.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockModel) nextStep(req Request) (mockStep, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.cursor < len(m.steps) {
		step := m.steps[m.cursor]
		m.cursor++
		return step, true
	}
	if m.repeatLast && len(m.steps) > 0 {
		return m.steps[len(m.steps)-1], true
	}
	return mockStep{}, false
}

// Generate implements Model. Scripted steps are emitted as-is; in streaming
// mode a text answer is additionally split into per-rune partial chunks
// before the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	step, scripted := m.nextStep(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !scripted {
			step = echoStep(req)
		}
		if step.err != nil {
			errCh <- step.err
			return
		}
		if req.Stream && step.message.Content != "" {
			for _, r := range step.message.Content {
				select {
				case <-ctx.Done():
					errCh <- core.NewCancelledError("mock.generate", ctx)
					return
				case respCh <- Response{
					Partial: true,
					Message: core.NewAssistantMessage(string(r)),
				}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- core.NewCancelledError("mock.generate", ctx)
		case respCh <- Response{
			Partial:      false,
			Message:      step.message,
			FinishReason: step.finishReason,
		}:
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func echoStep(req Request) mockStep {
	input := ""
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role == core.RoleUser {
			input = req.Contents[i].Content
			break
		}
	}
	return mockStep{
		message:      core.NewAssistantMessage(fmt.Sprintf("Mock response to: %s", input)),
		finishReason: "stop",
	}
}
