package agent

import (
	"context"
	"sync"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

// Chunk is one streamed text fragment.
type Chunk struct {
	Text string
}

// Stream is a pull-based streaming session. Iterate with Next/Current until
// Next returns false, then inspect Err, Interrupted and Conversation. Close
// abandons the session and releases the underlying provider stream.
//
// When the model ends its turn by requesting tools, the chunk sequence ends,
// the tool round runs via the non-streaming path, Interrupted reports true
// and Conversation carries the tool round. Re-stream with that conversation
// to continue.
type Stream struct {
	cancel context.CancelFunc
	chunks chan string
	done   chan struct{}

	current Chunk
	primed  bool

	mu          sync.Mutex
	err         error
	interrupted bool
	conv        core.Conversation
	closed      bool
}

// Stream starts a streaming session over the given conversation. The
// caller's conversation value is never mutated.
func (a *Agent) Stream(ctx context.Context, conv core.Conversation) (*Stream, error) {
	working, err := a.seed(ctx, conv)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		cancel: cancel,
		chunks: make(chan string, 32),
		done:   make(chan struct{}),
	}

	go a.runStream(streamCtx, working, s)
	return s, nil
}

func (a *Agent) runStream(ctx context.Context, working core.Conversation, s *Stream) {
	defer close(s.done)
	defer close(s.chunks)

	respCh, errCh := a.model.Generate(ctx, a.buildRequest(working, true))

	var final *model.Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			s.setErr(core.NewCancelledError("agent.stream", ctx))
			return
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if resp.Message.Content != "" {
					select {
					case s.chunks <- resp.Message.Content:
					case <-ctx.Done():
						s.setErr(core.NewCancelledError("agent.stream", ctx))
						return
					}
				}
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				s.setErr(err)
				return
			}
		}
	}

	if final == nil {
		s.setErr(&model.ProviderError{
			Provider:  a.model.Info().Provider,
			Message:   "provider emitted no final response",
			Transient: true,
		})
		return
	}

	working = working.Append(final.Message)

	if final.Message.HasToolCalls() {
		a.logger.Debug("agent.stream.interrupted", "agent", a.opts.Name, "tool_calls", len(final.Message.ToolCalls))
		results, err := a.executeTools(ctx, final.Message.ToolCalls)
		if err != nil {
			s.setErr(err)
			return
		}
		working = working.Append(results...)
		s.setInterrupted()
	}

	s.setConversation(working)
}

// Next advances to the next chunk, blocking until one is available. It
// returns false when the stream is over; check Err afterwards.
func (s *Stream) Next() bool {
	if s.primed {
		s.primed = false
		return true
	}
	text, ok := <-s.chunks
	if !ok {
		return false
	}
	s.current = Chunk{Text: text}
	return true
}

// prime blocks until the first chunk arrives or the session ends, without
// consuming anything from the caller's point of view: the buffered chunk is
// replayed by the following Next. It returns the terminal error when the
// session ends before producing a chunk.
func (s *Stream) prime() error {
	if s.Next() {
		s.primed = true
		return nil
	}
	return s.Err()
}

// Done is closed when the producing goroutine has finished, whether the
// session completed, failed or was closed.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Current returns the chunk read by the last successful Next.
func (s *Stream) Current() Chunk { return s.current }

// Err returns the terminal error, if any. Valid after Next returns false.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Interrupted reports whether the turn ended in a tool round. Valid after
// Next returns false.
func (s *Stream) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Conversation returns the augmented conversation including the streamed
// assistant message and, when interrupted, the tool round. Valid after Next
// returns false with a nil Err.
func (s *Stream) Conversation() core.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Close abandons the session, cancelling the underlying provider stream.
// Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	for range s.chunks { // drain so the producer can finish
	}
	return nil
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) setInterrupted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
}

func (s *Stream) setConversation(conv core.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = conv
}
