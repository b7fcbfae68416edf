// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. The default everywhere in AgentKit is NoOpLogger; supply
// a SlogAdapter (or your own implementation) to see agent loop, tool call and
// fallback events.
package logging
