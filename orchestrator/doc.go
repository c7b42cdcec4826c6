// Package orchestrator drives the agent's side of a game. An agent turn is a
// sequence of streamed model invocations, each moving through the states
// Idle, Streaming and then Completed or Errored. While streaming, every chunk
// is classified into core.StreamedEvent values: narration and reasoning are
// relayed verbatim, action intents are executed against the session's tools
// and an accepted move is relayed the moment it is applied.
//
// The orchestrator keeps no per-session state of its own. Everything lives
// in the session.GameSession it is handed, and every call must run on that
// session's task queue.
package orchestrator
