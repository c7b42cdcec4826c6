package tool

import (
	"fmt"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/game"
)

// Names of the game tools bound to every agent.
const (
	MakeMoveName       = "make_move"
	GetBoardStringName = "get_board_string"
)

// MoveArgs documents the make_move arguments.
type MoveArgs struct {
	Position int `json:"position" description:"Board index 0-8, row-major from the top-left (A1=0, B2=4, C3=8)"`
}

// MoveObserver is notified of every move the agent got accepted, before the
// tool result is returned to the model.
type MoveObserver func(toolCtx *core.ToolContext, outcome game.MoveOutcome)

// NewMakeMoveTool builds the tool through which the agent places its mark.
// A rejected move is returned as *ToolError with CodeMoveRejected so the
// model can retry; the board stays untouched.
func NewMakeMoveTool(v *game.Validator, player game.Player, observe MoveObserver) *FunctionTool {
	return NewFunctionToolFromStruct(
		MakeMoveName,
		fmt.Sprintf("Place your mark (%s) on an empty cell. Call this exactly once when it is your turn.", player.Mark()),
		MoveArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			pos, err := positionArg(args["position"])
			if err != nil {
				return nil, &ToolError{
					Tool:    MakeMoveName,
					Message: err.Error(),
					Code:    CodeValidation,
					Err:     core.NewValidationError("invalid_argument", err.Error()),
				}
			}

			// An interrupted turn must not commit a move.
			if err := toolCtx.Context().Err(); err != nil {
				toolCtx.LogDebug("tool.make_move.cancelled", "position", pos)
				return nil, &ToolError{
					Tool:    MakeMoveName,
					Message: "turn cancelled",
					Code:    CodeExecution,
					Err:     err,
				}
			}

			outcome := v.Apply(player, pos)
			if !outcome.Accepted {
				toolCtx.LogWarn("tool.make_move.rejected", "position", pos, "reason", outcome.ReasonCode())
				return nil, &ToolError{
					Tool:    MakeMoveName,
					Message: outcome.Message,
					Code:    CodeMoveRejected,
					Details: outcome.ReasonCode(),
					Err:     core.NewValidationError(outcome.ReasonCode(), outcome.Message),
				}
			}
			toolCtx.LogInfo("tool.make_move.applied", "position", pos, "player", player.Mark())

			if observe != nil {
				observe(toolCtx, outcome)
			}
			return outcome.Message, nil
		},
	)
}

// NewGetBoardStringTool builds the read-only tool that renders the board.
func NewGetBoardStringTool(e *game.Engine) *FunctionTool {
	return NewFunctionTool(
		GetBoardStringName,
		"Get the current board as text. Cells are O, X or empty; rows are A-C, columns 1-3.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return e.Snapshot().String(), nil
		},
	)
}

// positionArg converts the decoded JSON number.
func positionArg(v any) (int, error) {
	switch p := v.(type) {
	case float64:
		if p != float64(int(p)) {
			return 0, fmt.Errorf("position must be an integer, got %v", p)
		}
		return int(p), nil
	case int:
		return p, nil
	default:
		return 0, fmt.Errorf("position must be an integer, got %T", v)
	}
}
