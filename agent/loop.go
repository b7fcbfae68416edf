package agent

import (
	"context"
	"time"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

// run executes the completion loop: model round, tool round, repeat. It
// returns the final answer and the augmented conversation, or fails with
// *ToolLoopExceededError once the iteration bound is crossed.
func (a *Agent) run(ctx context.Context, conv core.Conversation) (string, core.Conversation, error) {
	working := conv

	for round := 1; ; round++ {
		if round > a.opts.MaxIterations {
			a.logger.Warn("agent.loop.exceeded", "agent", a.opts.Name, "limit", a.opts.MaxIterations)
			return "", nil, &ToolLoopExceededError{Limit: a.opts.MaxIterations}
		}

		a.logger.Debug("agent.loop.round", "agent", a.opts.Name, "round", round, "messages", len(working))

		start := time.Now()
		resp, err := model.Complete(ctx, a.model, a.buildRequest(working, false))
		if err != nil {
			return "", nil, err
		}
		a.logger.Debug("agent.model.complete",
			"agent", a.opts.Name,
			"round", round,
			"finish_reason", resp.FinishReason,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		working = working.Append(resp.Message)

		if !resp.Message.HasToolCalls() {
			return resp.Message.Content, working, nil
		}

		results, err := a.executeTools(ctx, resp.Message.ToolCalls)
		if err != nil {
			return "", nil, err
		}
		working = working.Append(results...)
	}
}
