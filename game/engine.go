package game

// Reason explains why the engine rejected a move. The zero value means the
// move was accepted.
type Reason int

const (
	// ReasonNone marks an accepted move.
	ReasonNone Reason = iota
	// ReasonTerminalState means the game already ended.
	ReasonTerminalState
	// ReasonWrongTurn means the mover does not own the turn.
	ReasonWrongTurn
	// ReasonOutOfBounds means the position is outside [0,8].
	ReasonOutOfBounds
	// ReasonOccupied means the cell is already owned.
	ReasonOccupied
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTerminalState:
		return "terminal_state"
	case ReasonWrongTurn:
		return "wrong_turn"
	case ReasonOutOfBounds:
		return "out_of_bounds"
	case ReasonOccupied:
		return "occupied"
	default:
		return "unknown"
	}
}

// MoveRecord is one entry of the append-only move log.
type MoveRecord struct {
	Turn     int    `json:"turn"`
	Player   Player `json:"player"`
	Position int    `json:"position"`
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"-"`
}

// MoveResult is what Engine.ApplyMove reports.
type MoveResult struct {
	Accepted bool
	Reason   Reason
	Record   MoveRecord
}

// Engine is the board state machine. It is not safe for concurrent use;
// callers serialize access per session.
type Engine struct {
	starting Player
	board    Board
	current  Player
	status   Status
	turn     int
	history  []MoveRecord
}

// NewEngine returns an engine at the starting state with the given player
// to move first. An invalid player falls back to First.
func NewEngine(starting Player) *Engine {
	if !starting.Valid() {
		starting = First
	}
	e := &Engine{starting: starting}
	e.Reset()
	return e
}

// Reset reinitializes the board, turn owner, turn counter, status and log.
func (e *Engine) Reset() {
	e.board = Board{}
	e.current = e.starting
	e.status = Status{State: Ongoing}
	e.turn = 1
	e.history = nil
}

// ApplyMove attempts a move. Checks run in a fixed order and the first
// failing one decides the reason. Every attempt is logged exactly once.
func (e *Engine) ApplyMove(player Player, position int) MoveResult {
	reason := e.check(player, position)
	rec := MoveRecord{
		Turn:     e.turn,
		Player:   player,
		Position: position,
		Accepted: reason == ReasonNone,
		Reason:   reason,
	}
	e.history = append(e.history, rec)

	if reason != ReasonNone {
		return MoveResult{Reason: reason, Record: rec}
	}

	e.board[position] = Owned(player)
	e.turn++
	e.current = player.Opponent()
	e.status = CheckStatus(e.board)

	return MoveResult{Accepted: true, Record: rec}
}

func (e *Engine) check(player Player, position int) Reason {
	switch {
	case e.status.Terminal():
		return ReasonTerminalState
	case player != e.current:
		return ReasonWrongTurn
	case position < 0 || position >= BoardSize:
		return ReasonOutOfBounds
	case !e.board[position].Empty():
		return ReasonOccupied
	}
	return ReasonNone
}

// Snapshot returns a copy of the board.
func (e *Engine) Snapshot() Board { return e.board }

// CurrentPlayer returns the player whose turn it is.
func (e *Engine) CurrentPlayer() Player { return e.current }

// StartingPlayer returns the designated first mover.
func (e *Engine) StartingPlayer() Player { return e.starting }

// Status returns the current game status.
func (e *Engine) Status() Status { return e.status }

// Turn returns the number of the next move, starting at 1.
func (e *Engine) Turn() int { return e.turn }

// History returns a copy of the move log.
func (e *Engine) History() []MoveRecord {
	out := make([]MoveRecord, len(e.history))
	copy(out, e.history)
	return out
}
