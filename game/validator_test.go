package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Messages(t *testing.T) {
	v := NewValidator(NewEngine(First))

	out := v.Apply(First, 4)
	require.True(t, out.Accepted)
	assert.Equal(t, "Move successful. Now X's turn.", out.Message)
	assert.Equal(t, "", out.ReasonCode())

	out = v.Apply(Second, 4)
	assert.False(t, out.Accepted)
	assert.Equal(t, "Position 4 is already taken.", out.Message)
	assert.Equal(t, "occupied", out.ReasonCode())

	out = v.Apply(Second, 9)
	assert.Equal(t, "Invalid position: 9 (must be 0-8).", out.Message)

	out = v.Apply(First, 0)
	assert.Equal(t, "It's not O's turn.", out.Message)

	assert.Equal(t, []string{"Move successful. Now X's turn."}, v.Messages())
}

func TestValidator_RejectedCarriesUnchangedState(t *testing.T) {
	v := NewValidator(NewEngine(First))
	v.Apply(First, 0)
	before := v.Engine().Snapshot()

	out := v.Apply(Second, 0)

	assert.False(t, out.Accepted)
	assert.Equal(t, before, out.Board)
	assert.Equal(t, Status{State: Ongoing}, out.Status)
	assert.Len(t, v.Engine().History(), 2)
}

func TestValidator_TerminalMessages(t *testing.T) {
	v := NewValidator(NewEngine(First))
	for _, pos := range []int{0, 3, 1, 4} {
		v.Apply(v.Engine().CurrentPlayer(), pos)
	}
	out := v.Apply(First, 2)
	assert.Equal(t, "Player O wins!", out.Message)
	assert.True(t, out.Status.Terminal())

	out = v.Apply(Second, 5)
	assert.Equal(t, ReasonTerminalState, out.Reason)
	assert.Equal(t, "The game is already over.", out.Message)

	v.Reset()
	assert.Empty(t, v.Messages())
	assert.Equal(t, Ongoing, v.Engine().Status().State)
}

func TestMoveOutcome_JSON(t *testing.T) {
	v := NewValidator(NewEngine(First))
	out := v.Apply(First, 2)

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "O", decoded["player"])
	assert.Equal(t, []any{nil, nil, "O", nil, nil, nil, nil, nil, nil}, decoded["board"])
	assert.Equal(t, map[string]any{"state": "ongoing"}, decoded["status"])
}

func TestBoard_String(t *testing.T) {
	b := Board{Owned(First), {}, Owned(Second)}
	assert.Equal(t, " O |   | X \n-----------\n   |   |   \n-----------\n   |   |   ", b.String())
}

func TestPositions(t *testing.T) {
	for i := 0; i < BoardSize; i++ {
		pos, err := IndexToPos(i)
		require.NoError(t, err)
		back, err := PosToIndex(pos)
		require.NoError(t, err)
		assert.Equal(t, i, back)
	}

	idx, err := PosToIndex("b3")
	require.NoError(t, err)
	assert.Equal(t, 5, idx)

	_, err = PosToIndex("D1")
	assert.Error(t, err)
	_, err = PosToIndex("A")
	assert.Error(t, err)
	_, err = IndexToPos(9)
	assert.Error(t, err)
}

func TestParseMark(t *testing.T) {
	p, err := ParseMark(" x ")
	require.NoError(t, err)
	assert.Equal(t, Second, p)

	_, err = ParseMark("Z")
	assert.Error(t, err)
}
