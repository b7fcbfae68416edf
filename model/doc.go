// Package model defines the provider-agnostic abstractions for driving
// language models inside AgentKit.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize the tool declaration wire shape (ToolDefinition)
//   - Classify provider failures into transient vs. terminal (ProviderError)
//   - Facilitate deterministic scripting for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Bedrock) implement the Model interface from
// this package in their own subpackages so higher layers (agents, fallback)
// remain decoupled from vendor SDKs.
package model
