// Package core contains the shared value types the rest of AgentKit is built
// on: conversation messages and tool calls, the Conversation sequence, the
// Session container and the store contracts implemented by the session and
// memory packages.
//
// Types in this package are plain values with no behavior beyond construction
// and defensive copying. Keeping them dependency-free lets every other package
// (agents, models, tools, stores) share them without cycles.
package core
