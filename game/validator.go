package game

import "fmt"

// MoveOutcome is the caller-facing result of a move attempt. A rejected
// outcome carries the unchanged board and status.
type MoveOutcome struct {
	Accepted bool   `json:"success"`
	Reason   Reason `json:"-"`
	Message  string `json:"message"`
	Player   Player `json:"player"`
	Position int    `json:"position"`
	Turn     int    `json:"turn"`
	Board    Board  `json:"board"`
	Status   Status `json:"status"`
}

// ReasonCode returns the rejection reason as a wire string, empty when the
// move was accepted.
func (o MoveOutcome) ReasonCode() string {
	if o.Accepted {
		return ""
	}
	return o.Reason.String()
}

// Validator applies moves through an Engine and never fails with an error
// for rule violations.
type Validator struct {
	engine   *Engine
	messages []string
}

// NewValidator wraps an engine.
func NewValidator(engine *Engine) *Validator {
	return &Validator{engine: engine}
}

// Engine exposes the wrapped engine for read access.
func (v *Validator) Engine() *Engine { return v.engine }

// Apply attempts the move and describes the outcome.
func (v *Validator) Apply(player Player, position int) MoveOutcome {
	res := v.engine.ApplyMove(player, position)
	out := MoveOutcome{
		Accepted: res.Accepted,
		Reason:   res.Reason,
		Player:   player,
		Position: position,
		Turn:     res.Record.Turn,
		Board:    v.engine.Snapshot(),
		Status:   v.engine.Status(),
	}

	if !res.Accepted {
		out.Message = rejectionMessage(res.Reason, player, position)
		return out
	}

	switch out.Status.State {
	case Win:
		out.Message = fmt.Sprintf("Player %s wins!", out.Status.Winner.Mark())
	case Draw:
		out.Message = "The game is a draw."
	default:
		out.Message = fmt.Sprintf("Move successful. Now %s's turn.", v.engine.CurrentPlayer().Mark())
	}
	v.messages = append(v.messages, out.Message)

	return out
}

// Messages returns the commentary of accepted moves in order.
func (v *Validator) Messages() []string {
	out := make([]string, len(v.messages))
	copy(out, v.messages)
	return out
}

// Reset resets the engine and clears the commentary.
func (v *Validator) Reset() {
	v.engine.Reset()
	v.messages = nil
}

func rejectionMessage(r Reason, player Player, position int) string {
	switch r {
	case ReasonTerminalState:
		return "The game is already over."
	case ReasonWrongTurn:
		return fmt.Sprintf("It's not %s's turn.", player.Mark())
	case ReasonOutOfBounds:
		return fmt.Sprintf("Invalid position: %d (must be 0-8).", position)
	case ReasonOccupied:
		return fmt.Sprintf("Position %d is already taken.", position)
	default:
		return "Move rejected."
	}
}
