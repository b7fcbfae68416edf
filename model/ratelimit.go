package model

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentkit/core"
)

// RateLimitedModel wraps another Model behind a token-bucket limiter so a
// shared backend quota is respected across concurrent agents. The wait
// happens inside Generate's goroutine, so callers keep the usual channel
// semantics; a context that ends while waiting surfaces as
// *core.CancelledError.
type RateLimitedModel struct {
	inner   Model
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a requests-per-minute budget. Burst allows
// short spikes above the steady rate; a burst below 1 is raised to 1 so the
// limiter can make progress.
func NewRateLimited(inner Model, requestsPerMinute float64, burst int) *RateLimitedModel {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedModel{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst),
	}
}

// Generate implements Model, delegating to the wrapped model once the
// limiter admits the request.
func (m *RateLimitedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if err := m.limiter.Wait(ctx); err != nil {
			errCh <- core.NewCancelledError("model.ratelimit", ctx)
			return
		}

		innerOut, innerErr := m.inner.Generate(ctx, req)
		for innerOut != nil || innerErr != nil {
			select {
			case resp, ok := <-innerOut:
				if !ok {
					innerOut = nil
					continue
				}
				out <- resp
			case err, ok := <-innerErr:
				if !ok {
					innerErr = nil
					continue
				}
				if err != nil {
					errCh <- err
				}
			}
		}
	}()
	return out, errCh
}

// Info implements Model.
func (m *RateLimitedModel) Info() Info { return m.inner.Info() }
