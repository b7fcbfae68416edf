package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
)

// Runner is the caller-facing surface shared by Agent and Fallback, so
// fallback chains can nest.
type Runner interface {
	Name() string
	Prompt(ctx context.Context, input string) (string, error)
	Chat(ctx context.Context, conv core.Conversation) (string, core.Conversation, error)
	Stream(ctx context.Context, conv core.Conversation) (*Stream, error)
}

// FallbackOptions configure the fallback orchestrator.
type FallbackOptions struct {
	// BreakerThreshold is the number of consecutive failures after which a
	// runner's circuit breaker opens.
	BreakerThreshold uint32
	// BreakerCooldown is how long an open breaker stays open before probing
	// the runner again.
	BreakerCooldown time.Duration

	Logger logging.Logger
}

type fallbackEntry struct {
	runner  Runner
	breaker *gobreaker.CircuitBreaker[any]
}

// Fallback re-issues the identical input to the next runner when the
// current one fails transiently (retryable provider errors, exceeded tool
// loops, open breakers). Non-transient failures and cancellation
// short-circuit. Each runner is guarded by its own circuit breaker so a
// persistently failing backend is skipped cheaply.
type Fallback struct {
	name    string
	entries []fallbackEntry
	logger  logging.Logger
}

// NewFallback creates a fallback chain over the given runners, tried in
// order.
func NewFallback(runners []Runner, optFns ...func(o *FallbackOptions)) (*Fallback, error) {
	if len(runners) == 0 {
		return nil, fmt.Errorf("fallback: at least one runner is required")
	}

	opts := FallbackOptions{
		BreakerThreshold: 3,
		BreakerCooldown:  30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	entries := make([]fallbackEntry, len(runners))
	for i, r := range runners {
		entries[i] = fallbackEntry{
			runner: r,
			breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
				Name:        r.Name(),
				MaxRequests: 1,
				Timeout:     opts.BreakerCooldown,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= opts.BreakerThreshold
				},
				// Only failures that warrant falling back count toward the
				// trip: caller mistakes and cancellation say nothing about
				// backend health.
				IsSuccessful: func(err error) bool {
					return err == nil || !shouldFallback(err)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					logger.Info("fallback.breaker.state", "runner", name, "from", from.String(), "to", to.String())
				},
			}),
		}
	}

	return &Fallback{
		name:    fmt.Sprintf("fallback(%s)", runners[0].Name()),
		entries: entries,
		logger:  logger,
	}, nil
}

// Name implements Runner.
func (f *Fallback) Name() string { return f.name }

// Prompt implements Runner.
func (f *Fallback) Prompt(ctx context.Context, input string) (string, error) {
	result, err := f.execute(ctx, func(r Runner) (any, error) {
		return r.Prompt(ctx, input)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

type chatResult struct {
	answer string
	conv   core.Conversation
}

// Chat implements Runner. Every runner receives the identical original
// conversation; a failed attempt leaves no trace in the input.
func (f *Fallback) Chat(ctx context.Context, conv core.Conversation) (string, core.Conversation, error) {
	result, err := f.execute(ctx, func(r Runner) (any, error) {
		answer, augmented, err := r.Chat(ctx, conv)
		if err != nil {
			return nil, err
		}
		return chatResult{answer: answer, conv: augmented}, nil
	})
	if err != nil {
		return "", conv, err
	}
	cr := result.(chatResult)
	return cr.answer, cr.conv, nil
}

// Stream implements Runner. The first event is awaited inside the breaker,
// so a runner that fails before producing any text falls through to the
// next one; once chunks have flowed, later errors are the caller's to
// handle.
func (f *Fallback) Stream(ctx context.Context, conv core.Conversation) (*Stream, error) {
	result, err := f.execute(ctx, func(r Runner) (any, error) {
		s, err := r.Stream(ctx, conv)
		if err != nil {
			return nil, err
		}
		if err := s.prime(); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Stream), nil
}

func (f *Fallback) execute(ctx context.Context, attempt func(r Runner) (any, error)) (any, error) {
	var (
		attempts int
		lastErr  error
	)

	for _, entry := range f.entries {
		if err := ctx.Err(); err != nil {
			return nil, core.NewCancelledError("fallback", ctx)
		}

		attempts++
		result, err := entry.breaker.Execute(func() (any, error) {
			return attempt(entry.runner)
		})
		if err == nil {
			return result, nil
		}

		var cancelled *core.CancelledError
		if errors.As(err, &cancelled) {
			return nil, err
		}
		if !shouldFallback(err) {
			return nil, err
		}

		f.logger.Warn("fallback.attempt", "runner", entry.runner.Name(), "error", err.Error())
		lastErr = err
	}

	return nil, &AllProvidersExhaustedError{Attempts: attempts, Err: lastErr}
}

// shouldFallback reports whether an attempt failure warrants trying the next
// runner: transient provider failures, an exhausted tool loop (another model
// may converge), or a breaker refusing the call.
func shouldFallback(err error) bool {
	if model.IsTransient(err) {
		return true
	}
	var loopErr *ToolLoopExceededError
	if errors.As(err, &loopErr) {
		return true
	}
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
