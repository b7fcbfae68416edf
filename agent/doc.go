// Package agent implements the tool-augmented completion loop: a model is
// called with the conversation and the registered tool schemas, requested
// tool calls are dispatched concurrently through the registry, and the
// results are fed back until the model produces a final answer or the
// iteration bound is hit.
//
// The package also provides a streaming session (Stream) and a Fallback
// orchestrator that re-issues requests to backup agents on transient
// failure, guarded by per-agent circuit breakers.
package agent
