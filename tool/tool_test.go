package tool

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/internal/util"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestCreateSchema_ScalarTypes(t *testing.T) {
	schema := util.CreateSchema(MoveArgs{})
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["position"].(map[string]any)["type"])

	sample := util.CreateSchema(&sampleSchema{})
	sp := sample["properties"].(map[string]any)
	assert.Equal(t, "string", sp["a"].(map[string]any)["type"])
	assert.Equal(t, "integer", sp["b"].(map[string]any)["type"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

// -------------------- FunctionTool Tests --------------------

func toolCtx(fcID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), "sess-1", "inv-1", fcID, "agent", logging.NoOpLogger{})
}

func TestValidateParameters_RequiredStringSlice(t *testing.T) {
	schema := util.CreateSchema(MoveArgs{})
	err := util.ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "position", vErr.Field)
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(toolCtx("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(toolCtx("fc2"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(toolCtx("fc3"), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
}

// -------------------- Game Tools --------------------

func TestMakeMoveTool_Accepted(t *testing.T) {
	v := game.NewValidator(game.NewEngine(game.Second))

	var observed []game.MoveOutcome
	mm := NewMakeMoveTool(v, game.Second, func(_ *core.ToolContext, o game.MoveOutcome) {
		observed = append(observed, o)
	})

	res, err := mm.Call(toolCtx("fc-move"), map[string]any{"position": 4.0})
	require.NoError(t, err)
	assert.Equal(t, "Move successful. Now O's turn.", res)
	require.Len(t, observed, 1)
	assert.Equal(t, 4, observed[0].Position)
	owner, ok := v.Engine().Snapshot()[4].Owner()
	assert.True(t, ok)
	assert.Equal(t, game.Second, owner)
}

func TestMakeMoveTool_Rejected(t *testing.T) {
	v := game.NewValidator(game.NewEngine(game.First))
	called := false
	mm := NewMakeMoveTool(v, game.Second, func(_ *core.ToolContext, _ game.MoveOutcome) { called = true })

	_, err := mm.Call(toolCtx("fc-wrong"), map[string]any{"position": 0.0})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, CodeMoveRejected, toolErr.Code)
	assert.Equal(t, "It's not X's turn.", toolErr.Message)
	assert.False(t, called)
	assert.Equal(t, 0, v.Engine().Snapshot().Count())
}

func TestMakeMoveTool_RejectionIsValidationError(t *testing.T) {
	e := game.NewEngine(game.Second)
	e.ApplyMove(game.Second, 4)
	e.ApplyMove(game.First, 0)
	v := game.NewValidator(e)
	mm := NewMakeMoveTool(v, game.Second, nil)

	_, err := mm.Call(toolCtx("fc-taken"), map[string]any{"position": 4.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.NewValidationError("occupied", ""))

	var ce *core.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "occupied", ce.Code)
	assert.Equal(t, 2, v.Engine().Snapshot().Count())
}

func TestMakeMoveTool_CancelledTurnLeavesBoard(t *testing.T) {
	v := game.NewValidator(game.NewEngine(game.Second))
	called := false
	mm := NewMakeMoveTool(v, game.Second, func(_ *core.ToolContext, _ game.MoveOutcome) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tc := core.NewToolContext(ctx, "sess-1", "inv-1", "fc-late", "agent", logging.NoOpLogger{})

	_, err := mm.Call(tc, map[string]any{"position": 4.0})
	require.Error(t, err)
	assert.Equal(t, CodeExecution, err.(*ToolError).Code)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, 0, v.Engine().Snapshot().Count())
}

func TestMakeMoveTool_LogsThroughToolContext(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))
	tc := core.NewToolContext(context.Background(), "sess-1", "inv-1", "fc-log", "agent", logger)

	v := game.NewValidator(game.NewEngine(game.Second))
	mm := NewMakeMoveTool(v, game.Second, nil)

	_, err := mm.Call(tc, map[string]any{"position": 4.0})
	require.NoError(t, err)
	_, err = mm.Call(tc, map[string]any{"position": 4.0})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"tool.make_move.applied"`)
	assert.Contains(t, out, `"msg":"tool.make_move.rejected"`)
	assert.Contains(t, out, `"reason":"wrong_turn"`)
}

func TestMakeMoveTool_BadArguments(t *testing.T) {
	v := game.NewValidator(game.NewEngine(game.Second))
	mm := NewMakeMoveTool(v, game.Second, nil)

	_, err := mm.Call(toolCtx("fc-frac"), map[string]any{"position": 1.5})
	require.Error(t, err)
	assert.Equal(t, CodeValidation, err.(*ToolError).Code)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = mm.Call(toolCtx("fc-str"), map[string]any{"position": "B2"})
	require.Error(t, err)
	assert.Equal(t, CodeValidation, err.(*ToolError).Code)
	assert.Empty(t, v.Engine().History())
}

func TestGetBoardStringTool(t *testing.T) {
	e := game.NewEngine(game.First)
	e.ApplyMove(game.First, 0)
	gb := NewGetBoardStringTool(e)

	res, err := gb.Call(toolCtx("fc-board"), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, e.Snapshot().String(), res)
}

func TestDefinitions(t *testing.T) {
	e := game.NewEngine(game.First)
	defs := Definitions([]Tool{
		NewMakeMoveTool(game.NewValidator(e), game.Second, nil),
		NewGetBoardStringTool(e),
	})

	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, MakeMoveName, defs[0].Function.Name)
	assert.Contains(t, defs[0].Function.Description, "X")
	assert.Equal(t, GetBoardStringName, defs[1].Function.Name)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
