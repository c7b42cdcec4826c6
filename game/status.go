package game

import "encoding/json"

// State is the coarse game state.
type State int

const (
	// Ongoing means moves are still accepted.
	Ongoing State = iota
	// Win means one player completed a line.
	Win
	// Draw means the board filled without a winner.
	Draw
)

func (s State) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its lower-case name.
func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Status is the full game status. Winner is only set when State is Win.
type Status struct {
	State  State  `json:"state"`
	Winner Player `json:"winner,omitempty"`
}

// Terminal reports whether the game accepts no further moves.
func (s Status) Terminal() bool { return s.State != Ongoing }

// lines lists the winning triples in check order: rows, columns, diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// WinningLines returns every complete line on the board. Under legal play
// all returned lines belong to the same player.
func WinningLines(b Board) [][3]int {
	var out [][3]int
	for _, l := range lines {
		p, ok := b[l[0]].Owner()
		if !ok {
			continue
		}
		if q, _ := b[l[1]].Owner(); q != p {
			continue
		}
		if q, _ := b[l[2]].Owner(); q != p {
			continue
		}
		out = append(out, l)
	}
	return out
}

// CheckWin returns the owner of the first complete line, if any.
func CheckWin(b Board) (Player, bool) {
	won := WinningLines(b)
	if len(won) == 0 {
		return 0, false
	}
	p, _ := b[won[0][0]].Owner()
	return p, true
}

// CheckStatus derives the status of a board: a win takes precedence over a
// full board.
func CheckStatus(b Board) Status {
	if p, ok := CheckWin(b); ok {
		return Status{State: Win, Winner: p}
	}
	if b.Filled() {
		return Status{State: Draw}
	}
	return Status{State: Ongoing}
}
