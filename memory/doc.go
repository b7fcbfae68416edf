// Package memory provides long-term memory stores and conversation window
// management. The in-memory store ranks entries by keyword overlap; the
// window trims conversations to message and token budgets without breaking
// tool call pairing.
package memory
