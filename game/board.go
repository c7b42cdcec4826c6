// Package game implements the 3x3 tic-tac-toe rules: a pure Engine that owns
// the board, the turn owner and the append-only move log, and a Validator
// that turns engine rejections into caller-facing outcomes. Nothing in this
// package performs I/O.
package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BoardSize is the number of cells on the board.
const BoardSize = 9

// Player identifies one of the two seats. The human always holds First and
// the agent Second; which of them moves first is decided per engine.
type Player int

const (
	// First is the "O" seat.
	First Player = iota + 1
	// Second is the "X" seat.
	Second
)

// Mark returns the board symbol of the player.
func (p Player) Mark() string {
	switch p {
	case First:
		return "O"
	case Second:
		return "X"
	default:
		return "?"
	}
}

// Opponent returns the other seat.
func (p Player) Opponent() Player {
	if p == First {
		return Second
	}
	return First
}

// Valid reports whether p is one of the two seats.
func (p Player) Valid() bool { return p == First || p == Second }

func (p Player) String() string { return p.Mark() }

// MarshalJSON encodes the player as its mark.
func (p Player) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(p.Mark())
}

// ParseMark maps "O"/"X" (case-insensitive) back to a Player.
func ParseMark(s string) (Player, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "O":
		return First, nil
	case "X":
		return Second, nil
	}
	return 0, fmt.Errorf("unknown mark %q", s)
}

// Cell is one board square. The zero value is empty.
type Cell struct {
	owner Player
}

// Owned returns a cell owned by p.
func Owned(p Player) Cell { return Cell{owner: p} }

// Empty reports whether no player owns the cell.
func (c Cell) Empty() bool { return c.owner == 0 }

// Owner returns the owning player and whether the cell is owned.
func (c Cell) Owner() (Player, bool) { return c.owner, c.owner != 0 }

// MarshalJSON encodes an empty cell as null and an owned one as its mark.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(c.owner.Mark())
}

// Board is an immutable-by-value snapshot of the nine cells, row-major.
type Board [BoardSize]Cell

// Filled reports whether every cell is owned.
func (b Board) Filled() bool {
	for _, c := range b {
		if c.Empty() {
			return false
		}
	}
	return true
}

// Count returns the number of owned cells.
func (b Board) Count() int {
	n := 0
	for _, c := range b {
		if !c.Empty() {
			n++
		}
	}
	return n
}

// Marks returns the board as a slice of "O", "X" or "" strings.
func (b Board) Marks() []string {
	out := make([]string, BoardSize)
	for i, c := range b {
		if p, ok := c.Owner(); ok {
			out[i] = p.Mark()
		}
	}
	return out
}

// String renders the grid the way the agent sees it:
//
//	 O | X |
//	-----------
//	...
func (b Board) String() string {
	var sb strings.Builder
	for i, c := range b {
		mark := " "
		if p, ok := c.Owner(); ok {
			mark = p.Mark()
		}
		sb.WriteString(" " + mark + " ")
		if (i+1)%3 == 0 {
			if i < BoardSize-1 {
				sb.WriteString("\n-----------\n")
			}
		} else {
			sb.WriteString("|")
		}
	}
	return sb.String()
}

// PosToIndex converts a grid coordinate such as "A1" (row letter, column
// digit) into a flat index.
func PosToIndex(pos string) (int, error) {
	if len(pos) != 2 {
		return 0, fmt.Errorf("invalid position format %q, use e.g. A1", pos)
	}
	up := strings.ToUpper(pos)
	row := int(up[0] - 'A')
	col := int(up[1] - '1')
	if row < 0 || row > 2 || col < 0 || col > 2 {
		return 0, fmt.Errorf("position %q out of bounds", pos)
	}
	return row*3 + col, nil
}

// IndexToPos converts a flat index into its "A1".."C3" coordinate.
func IndexToPos(index int) (string, error) {
	if index < 0 || index >= BoardSize {
		return "", fmt.Errorf("index %d out of bounds", index)
	}
	return string(rune('A'+index/3)) + string(rune('1'+index%3)), nil
}
