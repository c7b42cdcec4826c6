// Package session owns the lifecycle of game sessions. A Registry maps each
// connection identity to exactly one GameSession (board engine, agent
// binding and conversation) and provides create, reset and teardown.
//
// All work touching one GameSession runs on that session's serial task
// queue (Submit), so the engine and conversation never see concurrent
// mutation. Different sessions run fully in parallel; the registry map is
// the only structure they share.
package session
