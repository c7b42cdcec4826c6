package session

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/hupe1980/tictacmesh/tool"
)

// AgentBinding describes the agent bound to a session.
type AgentBinding struct {
	Name   string
	Player game.Player
	Tools  []tool.Tool
}

// Binder builds the agent binding of a freshly created session.
type Binder func(gs *GameSession) AgentBinding

// GameSession is the unit of isolation: one board, one agent and one
// conversation per connection identity. Engine and Validator must only be
// used from jobs running on the session's task queue.
type GameSession struct {
	ID        string
	Created   time.Time
	Engine    *game.Engine
	Validator *game.Validator
	Human     game.Player
	Agent     AgentBinding

	emitter core.Emitter
	logger  logging.Logger
	queue   *taskQueue

	mu           sync.Mutex
	conversation *core.Conversation
	gameOver     bool
}

// Conversation returns the current conversation handle.
func (gs *GameSession) Conversation() *core.Conversation {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.conversation
}

// MarkGameOver reports true exactly once per game.
func (gs *GameSession) MarkGameOver() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.gameOver {
		return false
	}
	gs.gameOver = true
	return true
}

// AgentToMove reports whether the game is ongoing and the agent holds the turn.
func (gs *GameSession) AgentToMove() bool {
	return !gs.Engine.Status().Terminal() && gs.Engine.CurrentPlayer() == gs.Agent.Player
}

// Submit queues a job on the session's task queue. The returned channel is
// closed when the job finished or was discarded.
func (gs *GameSession) Submit(fn Job) (<-chan struct{}, error) {
	return gs.queue.submit(fn)
}

// Interrupt cancels the running job and discards queued ones.
func (gs *GameSession) Interrupt() { gs.queue.interrupt() }

// Notify delivers a notification unless ctx is already cancelled. It
// reports whether the notification was handed to the emitter.
func (gs *GameSession) Notify(ctx context.Context, kind core.Kind, payload any) bool {
	if ctx.Err() != nil {
		return false
	}

	n := core.Notification{
		Kind:      kind,
		SessionID: gs.ID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if err := gs.emitter.Emit(ctx, n); err != nil {
		gs.logger.Warn("session.emit.failed", "kind", string(kind), "error", err.Error())
	}

	return true
}

// NotifyBoard emits the current board.
func (gs *GameSession) NotifyBoard(ctx context.Context) bool {
	return gs.Notify(ctx, core.KindBoardUpdate, core.BoardUpdate{
		Board:   gs.Engine.Snapshot(),
		Status:  gs.Engine.Status(),
		Current: gs.Engine.CurrentPlayer(),
	})
}

// NotifyError emits an ERROR notification for err.
func (gs *GameSession) NotifyError(ctx context.Context, err error) bool {
	return gs.Notify(ctx, core.KindError, core.AsError(err).Payload())
}

// Logger returns the session scoped logger.
func (gs *GameSession) Logger() logging.Logger { return gs.logger }

func (gs *GameSession) reset(retainConversation bool) {
	gs.Validator.Reset()

	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.gameOver = false
	if !retainConversation {
		gs.conversation = core.NewConversation()
	}
}
