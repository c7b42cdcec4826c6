package core

import (
	"context"
	"time"

	"github.com/hupe1980/tictacmesh/game"
)

// Kind names an outward notification. The values are the socket event names.
type Kind string

const (
	KindBoardUpdate       Kind = "BOARD_STATE_UPDATED"
	KindMoveResult        Kind = "MOVE_RESULT"
	KindAgentNarration    Kind = "AGENT_STREAM_TOKEN"
	KindAgentAction       Kind = "AGENT_FUNCTION_CALL"
	KindAgentActionResult Kind = "AGENT_FUNCTION_RESULT"
	KindGameOver          Kind = "GAME_OVER_RESULT"
	KindStatus            Kind = "STATUS_UPDATE"
	KindError             Kind = "ERROR"
)

// Notification is one outward message addressed to a single session.
type Notification struct {
	Kind      Kind
	SessionID string
	Payload   any
	Timestamp time.Time
}

// Emitter delivers notifications to the connection that owns a session.
// Implementations must preserve call order.
type Emitter interface {
	Emit(ctx context.Context, n Notification) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, n Notification) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, n Notification) error { return f(ctx, n) }

// BoardUpdate is the payload of KindBoardUpdate.
type BoardUpdate struct {
	Board   game.Board  `json:"board"`
	Status  game.Status `json:"status"`
	Current game.Player `json:"current_player"`
}

// MoveResult is the payload of KindMoveResult.
type MoveResult struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	Position int         `json:"position"`
	Player   game.Player `json:"player"`
	Reason   string      `json:"reason,omitempty"`
	Board    game.Board  `json:"board"`
	Status   game.Status `json:"status"`
}

// NewMoveResult converts a validator outcome.
func NewMoveResult(o game.MoveOutcome) MoveResult {
	return MoveResult{
		Success:  o.Accepted,
		Message:  o.Message,
		Position: o.Position,
		Player:   o.Player,
		Reason:   o.ReasonCode(),
		Board:    o.Board,
		Status:   o.Status,
	}
}

// Narration payload types.
const (
	NarrationText      = "text"
	NarrationReasoning = "text_reasoning"
)

// AgentNarration is the payload of KindAgentNarration.
type AgentNarration struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AgentAction is the payload of KindAgentAction.
type AgentAction struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Args any    `json:"args"`
}

// AgentActionResult is the payload of KindAgentActionResult.
type AgentActionResult struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// GameOver is the payload of KindGameOver.
type GameOver struct {
	Winner game.Player `json:"winner,omitempty"`
	IsTie  bool        `json:"is_tie"`
	Result string      `json:"result"`
}

// Outcome labels used by GameOver.Result.
const (
	ResultHumanWins = "Human wins"
	ResultAgentWins = "AI wins"
	ResultTie       = "Tie"
)

// NewGameOver describes a terminal status from the human's point of view.
func NewGameOver(st game.Status, human game.Player) GameOver {
	if st.State == game.Draw {
		return GameOver{IsTie: true, Result: ResultTie}
	}
	res := ResultAgentWins
	if st.Winner == human {
		res = ResultHumanWins
	}
	return GameOver{Winner: st.Winner, Result: res}
}

// StatusText is the payload of KindStatus.
type StatusText struct {
	Text string `json:"text"`
}

// ErrorPayload is the payload of KindError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
