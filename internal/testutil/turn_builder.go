package testutil

import (
	"fmt"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/model"
)

// TurnBuilder provides a fluent helper for scripting one model turn.
// Example:
//
//	turn := NewTurnBuilder().Text("my move").Move(4).Build()
//
// Text and Reasoning are streamed as partial chunks; the final chunk carries
// the aggregated text plus every function call.
type TurnBuilder struct {
	reasoning []string
	text      []string
	calls     []core.FunctionCall
	err       error
	block     bool
	noPartial bool
}

// NewTurnBuilder creates an empty builder.
func NewTurnBuilder() *TurnBuilder { return &TurnBuilder{} }

// Text appends a streamed narration chunk (chainable).
func (b *TurnBuilder) Text(t string) *TurnBuilder { b.text = append(b.text, t); return b }

// Reasoning appends a streamed reasoning chunk (chainable).
func (b *TurnBuilder) Reasoning(t string) *TurnBuilder {
	b.reasoning = append(b.reasoning, t)
	return b
}

// Call adds a function call with the given name and JSON arguments (chainable).
func (b *TurnBuilder) Call(name, args string) *TurnBuilder {
	b.calls = append(b.calls, core.FunctionCall{
		ID:        fmt.Sprintf("call-%d", len(b.calls)+1),
		Name:      name,
		Arguments: args,
	})
	return b
}

// Move adds a make_move call for position (chainable).
func (b *TurnBuilder) Move(position int) *TurnBuilder {
	return b.Call("make_move", fmt.Sprintf(`{"position":%d}`, position))
}

// Err makes the turn fail after its responses (chainable).
func (b *TurnBuilder) Err(err error) *TurnBuilder { b.err = err; return b }

// Block makes the turn hang until its context is cancelled (chainable).
func (b *TurnBuilder) Block() *TurnBuilder { b.block = true; return b }

// FinalOnly suppresses partial chunks, as a non-streaming provider would (chainable).
func (b *TurnBuilder) FinalOnly() *TurnBuilder { b.noPartial = true; return b }

// Build constructs the scripted turn.
func (b *TurnBuilder) Build() model.MockTurn {
	var responses []model.Response
	if !b.noPartial {
		for _, r := range b.reasoning {
			responses = append(responses, partial(core.ReasoningPart{Text: r}))
		}
		for _, t := range b.text {
			responses = append(responses, partial(core.TextPart{Text: t}))
		}
	}

	parts := make([]core.Part, 0, len(b.calls)+2)
	var full string
	for _, t := range b.text {
		full += t
	}
	if full != "" {
		parts = append(parts, core.TextPart{Text: full})
	}
	for _, fc := range b.calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}

	finish := "stop"
	if len(b.calls) > 0 {
		finish = "tool_calls"
	}
	if !b.block {
		responses = append(responses, model.Response{
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finish,
		})
	}

	return model.MockTurn{Responses: responses, Err: b.err, Block: b.block}
}

func partial(p core.Part) model.Response {
	return model.Response{
		Partial: true,
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{p}},
	}
}
