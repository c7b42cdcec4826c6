package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/internal/util"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/hupe1980/tictacmesh/model"
	"github.com/hupe1980/tictacmesh/session"
	"github.com/hupe1980/tictacmesh/tool"
)

// Orchestrator runs agent turns against a shared model client.
type Orchestrator struct {
	model model.Model
	opts  Options
}

// New creates an orchestrator for m.
func New(m model.Model, optFns ...func(o *Options)) *Orchestrator {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxAgentRuns < 1 {
		opts.MaxAgentRuns = 1
	}
	return &Orchestrator{model: m, opts: opts}
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options { return o.opts }

// Bind builds the agent binding of a new session. It is meant to be used as
// session.Options.Binder.
func (o *Orchestrator) Bind(gs *session.GameSession) session.AgentBinding {
	player := gs.Human.Opponent()
	return session.AgentBinding{
		Name:   o.opts.Name,
		Player: player,
		Tools: []tool.Tool{
			tool.NewMakeMoveTool(gs.Validator, player, o.observeMove(gs)),
			tool.NewGetBoardStringTool(gs.Engine),
		},
	}
}

// observeMove relays an accepted agent move the moment it is applied.
func (o *Orchestrator) observeMove(gs *session.GameSession) tool.MoveObserver {
	return func(toolCtx *core.ToolContext, outcome game.MoveOutcome) {
		ctx := toolCtx.Context()
		gs.Notify(ctx, core.KindMoveResult, core.NewMoveResult(outcome))
		gs.NotifyBoard(ctx)
		if outcome.Status.Terminal() {
			o.AnnounceGameOver(ctx, gs)
		}
	}
}

// Start triggers the agent when it owns the opening move. It is a no-op
// otherwise.
func (o *Orchestrator) Start(ctx context.Context, gs *session.GameSession) error {
	if !gs.AgentToMove() || gs.Engine.Snapshot().Count() > 0 {
		return nil
	}
	board := gs.Engine.Snapshot()
	return o.PlayTurn(ctx, gs, fmt.Sprintf(
		"A new game starts and you move first as %s. The board is empty:\n%s\nMake your move.",
		gs.Agent.Player.Mark(), board.String(),
	))
}

// HumanMoved reacts to an accepted human move: it finishes the game when the
// move ended it and otherwise hands the turn to the agent.
func (o *Orchestrator) HumanMoved(ctx context.Context, gs *session.GameSession, outcome game.MoveOutcome) error {
	if outcome.Status.Terminal() {
		return o.FinishGame(ctx, gs)
	}

	pos, _ := game.IndexToPos(outcome.Position)
	return o.PlayTurn(ctx, gs, fmt.Sprintf(
		"I placed %s on position %d (%s). Current board:\n%s\nYour turn, %s.",
		outcome.Player.Mark(), outcome.Position, pos, outcome.Board.String(), gs.Agent.Player.Mark(),
	))
}

// PlayTurn runs invocations until the agent has moved, the game ended, the
// invocation failed or MaxAgentRuns attempts passed without a move. A
// failure or an exhausted ceiling is relayed as exactly one ERROR
// notification. A cancelled context ends the turn silently.
func (o *Orchestrator) PlayTurn(ctx context.Context, gs *session.GameSession, trigger string) error {
	if !gs.AgentToMove() {
		return nil
	}

	logger := o.sessionLogger(gs)
	start := time.Now()
	moved := false
	attempts := 0

	gs.Notify(ctx, core.KindStatus, core.StatusText{Text: fmt.Sprintf("%s is thinking...", gs.Agent.Player.Mark())})

	for attempts < o.opts.MaxAgentRuns {
		attempts++

		msg := trigger
		if attempts > 1 {
			msg = o.reminder(gs)
		}

		logger.Debug("orchestrator.turn.attempt", "attempt", attempts, "max", o.opts.MaxAgentRuns)

		out := o.invoke(ctx, gs, msg, true)
		moved = moved || out.Moved

		if out.Err != nil {
			if ctx.Err() != nil {
				logger.Info("orchestrator.turn.cancelled", "attempt", attempts)
				return ctx.Err()
			}
			o.logTurn(logger, attempts, moved, start, out.Err)
			gs.NotifyError(ctx, out.Err)
			return out.Err
		}

		if gs.Engine.Status().Terminal() {
			o.logTurn(logger, attempts, moved, start, nil)
			return o.FinishGame(ctx, gs)
		}

		if !gs.AgentToMove() {
			o.logTurn(logger, attempts, moved, start, nil)
			return nil
		}

		logger.Warn("orchestrator.turn.no_move", "attempt", attempts)
	}

	err := core.ErrAgentDidNotAct
	o.logTurn(logger, attempts, moved, start, err)
	gs.NotifyError(ctx, &core.Error{
		Kind:    err.Kind,
		Code:    err.Code,
		Message: fmt.Sprintf("%s after %d attempts", err.Message, attempts),
	})

	return err
}

// AnnounceGameOver relays the terminal outcome exactly once per game. It
// reports whether this call sent it.
func (o *Orchestrator) AnnounceGameOver(ctx context.Context, gs *session.GameSession) bool {
	st := gs.Engine.Status()
	if !st.Terminal() || ctx.Err() != nil {
		return false
	}
	if !gs.MarkGameOver() {
		return false
	}

	payload := core.NewGameOver(st, gs.Human)
	o.sessionLogger(gs).Info("orchestrator.game.over", "result", payload.Result)

	return gs.Notify(ctx, core.KindGameOver, payload)
}

// FinishGame announces the outcome and, when enabled, asks the agent for one
// round of post-game commentary.
func (o *Orchestrator) FinishGame(ctx context.Context, gs *session.GameSession) error {
	o.AnnounceGameOver(ctx, gs)

	if !o.opts.PostGameCommentary || ctx.Err() != nil {
		return nil
	}

	result := core.NewGameOver(gs.Engine.Status(), gs.Human).Result
	msg := fmt.Sprintf("The game is over. Result: %s. Final board:\n%s\nGive your verdict on the game.",
		result, gs.Engine.Snapshot().String())

	return o.converse(ctx, gs, msg)
}

// Converse routes a free-form message to the agent regardless of the game
// status. Only read-only tools are offered.
func (o *Orchestrator) Converse(ctx context.Context, gs *session.GameSession, text string) error {
	return o.converse(ctx, gs, text)
}

func (o *Orchestrator) converse(ctx context.Context, gs *session.GameSession, text string) error {
	out := o.invoke(ctx, gs, text, false)
	if out.Err == nil || ctx.Err() != nil {
		return out.Err
	}
	gs.NotifyError(ctx, out.Err)
	return out.Err
}

// invoke runs one streamed invocation. withMove offers the make_move tool.
func (o *Orchestrator) invoke(ctx context.Context, gs *session.GameSession, text string, withMove bool) Outcome {
	invID := core.NewID()
	logger := o.sessionLogger(gs)
	if sl, ok := logger.(*logging.SessionLogger); ok {
		logger = sl.WithSession(gs.ID, invID)
	}

	instructions, err := util.RenderTemplate(o.opts.Instructions, map[string]any{
		"name":       gs.Agent.Name,
		"agent_mark": gs.Agent.Player.Mark(),
		"human_mark": gs.Human.Mark(),
	})
	if err != nil {
		return Outcome{State: StateErrored, Err: core.NewOrchestrationError("render instructions", err)}
	}

	tools := make(map[string]tool.Tool, len(gs.Agent.Tools))
	var offered []tool.Tool
	for _, t := range gs.Agent.Tools {
		if !withMove && t.Name() == tool.MakeMoveName {
			continue
		}
		tools[t.Name()] = t
		offered = append(offered, t)
	}

	inv := &invocation{
		id:           invID,
		gs:           gs,
		model:        o.model,
		instructions: instructions,
		tools:        tools,
		defs:         tool.Definitions(offered),
		stream:       o.opts.Stream,
		limiter:      core.NewModelLimiter(o.opts.MaxModelCalls),
		logger:       logger,
		executed:     map[string]struct{}{},
	}

	out := inv.run(ctx, core.NewTextContent(core.RoleUser, text))
	if out.Err != nil && !errors.Is(out.Err, context.Canceled) {
		logger.Warn("orchestrator.invocation.failed", "model_calls", out.ModelCalls, "moved", out.Moved, "error", out.Err.Error())
	}

	return out
}

// reminder is the trigger of a retry after an invocation ended without a move.
func (o *Orchestrator) reminder(gs *session.GameSession) string {
	return fmt.Sprintf(
		"You did not make a move. It is still your turn as %s. Current board:\n%s\nCall make_move with an empty position now.",
		gs.Agent.Player.Mark(), gs.Engine.Snapshot().String(),
	)
}

func (o *Orchestrator) sessionLogger(gs *session.GameSession) logging.Logger {
	if l := gs.Logger(); l != nil {
		if _, noop := l.(logging.NoOpLogger); !noop {
			return l
		}
	}
	return o.opts.Logger
}

type turnLogger interface {
	LogAgentTurn(attempts int, moved bool, dur time.Duration, err error)
}

func (o *Orchestrator) logTurn(logger logging.Logger, attempts int, moved bool, start time.Time, err error) {
	if tl, ok := logger.(turnLogger); ok {
		tl.LogAgentTurn(attempts, moved, time.Since(start), err)
		return
	}
	if err != nil {
		logger.Warn("orchestrator.turn.failed", "attempts", attempts, "moved", moved, "error", err.Error())
		return
	}
	logger.Info("orchestrator.turn.completed", "attempts", attempts, "moved", moved)
}
