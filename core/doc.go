// Package core provides the shared vocabulary of tictacmesh:
//
//   - Content / Part: role-based conversation content exchanged with models
//   - StreamedEvent: the classified union consumed by the orchestrator
//   - Conversation: the per-session ConversationHandle
//   - Notification / Emitter: outward messages addressed to one session
//   - Error: the error taxonomy (validation, orchestration, protocol,
//     session lifecycle)
//   - ToolContext and ModelLimiter used while the agent acts
package core
