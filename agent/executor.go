package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/tool"
)

// executeTools dispatches every requested call through the registry
// concurrently, bounded by MaxParallelTools, and returns one tool-role
// message per call in request order regardless of completion order.
//
// Tool failures (validation, timeout, execution, unknown name) become tool
// messages so the model can react; only cancellation fails the round.
func (a *Agent) executeTools(ctx context.Context, calls []core.ToolCall) ([]core.Message, error) {
	if a.registry == nil {
		return nil, fmt.Errorf("agent %s: model requested tools but no registry is bound", a.opts.Name)
	}

	results := make([]core.Message, len(calls))
	errs := make([]error, len(calls))

	sem := make(chan struct{}, a.parallelism(len(calls)))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call core.ToolCall) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = core.NewCancelledError("agent.tools", ctx)
				return
			}

			start := time.Now()
			a.logger.Debug("tool.call.start", "agent", a.opts.Name, "tool", call.Name, "call_id", call.ID)

			output, err := a.registry.Invoke(ctx, call, func(o *tool.InvokeOptions) {
				o.Timeout = a.opts.ToolTimeout
			})

			switch {
			case err == nil:
				results[i] = core.NewToolResultMessage(call.ID, call.Name, serializeOutput(output))
			default:
				var cancelled *core.CancelledError
				if errors.As(err, &cancelled) {
					errs[i] = err
					return
				}
				// A call against a name the registry has never seen is a
				// contract breach, not a tool failure; the request fails.
				var unknown *tool.UnknownToolError
				if errors.As(err, &unknown) {
					errs[i] = err
					a.logger.Warn("tool.call.unknown", "agent", a.opts.Name, "tool", call.Name)
					return
				}
				// Handler failures feed back to the model as tool results so
				// it can react next round.
				results[i] = core.NewToolResultMessage(call.ID, call.Name, "Error: "+err.Error())
				a.logger.Warn("tool.call.error", "agent", a.opts.Name, "tool", call.Name, "error", err.Error())
			}

			a.logger.Debug("tool.call.end",
				"agent", a.opts.Name,
				"tool", call.Name,
				"call_id", call.ID,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}(i, call)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (a *Agent) parallelism(calls int) int {
	limit := a.opts.MaxParallelTools
	if limit <= 0 || limit > calls {
		limit = calls
	}
	if limit == 0 {
		limit = 1
	}
	return limit
}

// serializeOutput renders a tool result for the conversation: strings pass
// through, everything else is JSON encoded.
func serializeOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
