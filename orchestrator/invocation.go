package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/hupe1980/tictacmesh/model"
	"github.com/hupe1980/tictacmesh/session"
	"github.com/hupe1980/tictacmesh/tool"
)

// errEmptyStream reports a stream that closed without any content.
var errEmptyStream = errors.New("model stream ended without a response")

// invocation is one streamed decision-process cycle. Conversation writes are
// staged and only committed by finish.
type invocation struct {
	id           string
	gs           *session.GameSession
	model        model.Model
	instructions string
	tools        map[string]tool.Tool
	defs         []model.ToolDefinition
	stream       bool
	limiter      *core.ModelLimiter
	logger       logging.Logger

	state    State
	staged   []core.Content
	executed map[string]struct{}
	moved    bool
}

func (inv *invocation) transition(to State) {
	inv.logger.Debug("orchestrator.invocation.state", "from", inv.state.String(), "to", to.String())
	inv.state = to
}

// run drives the model until it stops calling tools, the game ends or a
// failure occurs.
func (inv *invocation) run(ctx context.Context, trigger core.Content) Outcome {
	inv.staged = append(inv.staged, trigger)
	inv.transition(StateStreaming)

	for {
		if err := ctx.Err(); err != nil {
			return inv.finish(err)
		}
		if err := inv.limiter.Increment(); err != nil {
			return inv.finish(err)
		}

		final, err := inv.generate(ctx)
		if err != nil {
			return inv.finish(err)
		}
		inv.staged = append(inv.staged, final)

		calls := final.FunctionCalls()
		if len(calls) == 0 {
			return inv.finish(nil)
		}

		responses := inv.execute(ctx, calls)
		inv.staged = append(inv.staged, core.Content{Role: core.RoleTool, Parts: responses})

		if inv.gs.Engine.Status().Terminal() {
			return inv.finish(nil)
		}
	}
}

// finish commits the staged conversation on success, or on failure when a
// move was already applied, and moves to the terminal state.
func (inv *invocation) finish(err error) Outcome {
	if err == nil || inv.moved {
		if conv := inv.gs.Conversation(); conv != nil {
			conv.Append(inv.staged...)
		}
	}

	if err != nil {
		inv.transition(StateErrored)
	} else {
		inv.transition(StateCompleted)
	}

	return Outcome{State: inv.state, Moved: inv.moved, ModelCalls: inv.limiter.Count(), Err: err}
}

// generate consumes one model stream, relaying narration as it arrives, and
// returns the aggregated assistant content.
func (inv *invocation) generate(ctx context.Context) (core.Content, error) {
	var history []core.Content
	if conv := inv.gs.Conversation(); conv != nil {
		history = conv.History()
	}

	req := model.Request{
		Instructions: inv.instructions,
		Contents:     append(history, inv.staged...),
		Tools:        inv.defs,
		Stream:       inv.stream,
	}

	start := time.Now()
	respCh, errCh := inv.model.Generate(ctx, req)

	var (
		final        *core.Content
		text         strings.Builder
		sawText      bool
		sawReasoning bool
		tokens       int
		streamErr    error
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return core.Content{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Usage != nil {
				tokens = resp.Usage.TotalTokens
			}
			if resp.Partial {
				for _, ev := range core.Classify(resp.Content, true) {
					switch e := ev.(type) {
					case core.Narration:
						sawText = true
						text.WriteString(e.Text)
						inv.narrate(ctx, core.NarrationText, e.Text)
					case core.ReasoningFragment:
						sawReasoning = true
						inv.narrate(ctx, core.NarrationReasoning, e.Text)
					}
				}
				continue
			}
			c := resp.Content
			final = &c
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				streamErr = err
			}
		}
	}

	inv.logLLMCall(tokens, time.Since(start), streamErr)

	if streamErr != nil {
		return core.Content{}, core.NewOrchestrationError("model invocation failed", streamErr)
	}

	if final == nil {
		if !sawText {
			return core.Content{}, core.NewOrchestrationError("model invocation failed", errEmptyStream)
		}
		c := core.NewTextContent(core.RoleAssistant, text.String())
		final = &c
	}

	return inv.complete(ctx, *final, sawText, sawReasoning), nil
}

// complete relays whatever the final chunk carries that was not streamed,
// assigns missing call ids and returns the content to stage.
func (inv *invocation) complete(ctx context.Context, c core.Content, sawText, sawReasoning bool) core.Content {
	out := core.Content{Role: core.RoleAssistant, Parts: make([]core.Part, 0, len(c.Parts))}

	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = core.NewID()
			p = fc
		}
		out.Parts = append(out.Parts, p)
	}

	for _, ev := range core.Classify(out, false) {
		switch e := ev.(type) {
		case core.Narration:
			if !sawText {
				inv.narrate(ctx, core.NarrationText, e.Text)
			}
		case core.ReasoningFragment:
			if !sawReasoning {
				inv.narrate(ctx, core.NarrationReasoning, e.Text)
			}
		case core.ActionResult:
			// Results of actions applied here are informational only.
			if _, done := inv.executed[e.ID]; done {
				continue
			}
			inv.gs.Notify(ctx, core.KindAgentActionResult, core.AgentActionResult{
				ID:     e.ID,
				Name:   e.Name,
				Result: e.Result,
				Error:  e.Err,
			})
		}
	}

	return out
}

func (inv *invocation) narrate(ctx context.Context, typ, text string) {
	inv.gs.Notify(ctx, core.KindAgentNarration, core.AgentNarration{Type: typ, Text: text})
}

// execute runs the action intents in order and returns their responses.
func (inv *invocation) execute(ctx context.Context, calls []core.FunctionCall) []core.Part {
	parts := make([]core.Part, 0, len(calls))

	for _, fc := range calls {
		fr := core.FunctionResponse{ID: fc.ID, Name: fc.Name}

		if err := ctx.Err(); err != nil {
			fr.Error = err.Error()
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
			continue
		}

		args := json.RawMessage(fc.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		inv.gs.Notify(ctx, core.KindAgentAction, core.AgentAction{ID: fc.ID, Name: fc.Name, Args: args})

		before := inv.gs.Engine.Snapshot().Count()
		toolCtx := core.NewToolContext(ctx, inv.gs.ID, inv.id, fc.ID, inv.gs.Agent.Name, inv.logger)

		start := time.Now()
		result, err := inv.call(toolCtx, fc.Name, string(args))
		inv.logToolCall(fc.Name, time.Since(start), err)

		if inv.gs.Engine.Snapshot().Count() != before {
			inv.moved = true
		}
		inv.executed[fc.ID] = struct{}{}

		if err != nil {
			fr.Error = err.Error()
		} else {
			fr.Response = result
		}

		inv.gs.Notify(ctx, core.KindAgentActionResult, core.AgentActionResult{
			ID:     fc.ID,
			Name:   fc.Name,
			Result: fr.Response,
			Error:  fr.Error,
		})

		parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
	}

	return parts
}

// call looks up and executes a tool, converting panics into errors.
func (inv *invocation) call(toolCtx *core.ToolContext, name, args string) (result any, err error) {
	impl, ok := inv.tools[name]
	if !ok {
		return nil, tool.NewToolError(name, fmt.Sprintf("tool %s not found", name), tool.CodeUnknownTool)
	}

	var argMap map[string]any
	if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, tool.NewToolError(name, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeValidation)
	}
	if argMap == nil {
		argMap = map[string]any{}
	}

	defer func() {
		if r := recover(); r != nil {
			inv.logger.Error("orchestrator.tool.panic", "tool", name, "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
			result, err = nil, tool.NewToolError(name, "panic recovered", tool.CodeExecution)
		}
	}()

	return impl.Call(toolCtx, argMap)
}

type callLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

func (inv *invocation) logToolCall(name string, dur time.Duration, err error) {
	if cl, ok := inv.logger.(callLogger); ok {
		cl.LogToolCall(name, dur, err == nil, err)
		return
	}
	inv.logger.Debug("orchestrator.tool.executed", "tool", name, "duration_ms", dur.Milliseconds(), "error", err != nil)
}

func (inv *invocation) logLLMCall(tokens int, dur time.Duration, err error) {
	if cl, ok := inv.logger.(callLogger); ok {
		cl.LogLLMCall(inv.model.Info().Name, tokens, dur, err == nil, err)
		return
	}
	inv.logger.Debug("orchestrator.model.called", "model", inv.model.Info().Name, "duration_ms", dur.Milliseconds(), "error", err != nil)
}
