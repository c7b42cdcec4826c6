// Package model defines the provider‑agnostic abstractions and concrete
// helpers for driving the agent's decision process.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI compatible servers, Anthropic) implement the Model
// interface from this package so the orchestrator stays decoupled from
// vendor SDKs. A Model must not keep per-session conversational state: the
// full history travels in every Request, so one client can be shared by
// all sessions.
package model
