// Package relay is the boundary between the transport and the game core. It
// maps every inbound event to exactly one registry, validator or
// orchestrator call, and rejects unknown or malformed events with a
// protocol_error notification before they reach the board.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/hupe1980/tictacmesh/orchestrator"
	"github.com/hupe1980/tictacmesh/session"
)

// Inbound event names.
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventGameReset     = "GAME_RESET"
	EventJoinGame      = "join_game"
	EventRestartGame   = "restart_game"
	EventUserMove      = "USER_MOVE"
	EventHumanMove     = "human_move"
	EventPostGameQuery = "post_game_query"
)

// Events lists every inbound event the relay understands.
var Events = []string{
	EventGameReset, EventJoinGame, EventRestartGame,
	EventUserMove, EventHumanMove,
	EventPostGameQuery,
}

// Options configure a Relay.
type Options struct {
	Logger logging.Logger
}

// Relay dispatches inbound events.
type Relay struct {
	registry *session.Registry
	orch     *orchestrator.Orchestrator
	logger   logging.Logger
}

// New creates a relay over a registry and an orchestrator.
func New(registry *session.Registry, orch *orchestrator.Orchestrator, optFns ...func(o *Options)) *Relay {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Relay{registry: registry, orch: orch, logger: opts.Logger}
}

// Registry returns the underlying session registry.
func (r *Relay) Registry() *session.Registry { return r.registry }

// Dispatch handles one inbound event. Failures are also relayed to the
// client, the returned error is informational.
func (r *Relay) Dispatch(sessionID, event string, payload any, emitter core.Emitter) error {
	r.logger.Debug("relay.event.received", "session_id", sessionID, "event", event)

	switch event {
	case EventConnect:
		return r.Connect(sessionID, emitter)
	case EventDisconnect:
		r.Disconnect(sessionID)
		return nil
	case EventGameReset, EventJoinGame, EventRestartGame:
		return r.Reset(sessionID, emitter)
	case EventUserMove, EventHumanMove:
		pos, err := decodeMove(payload)
		if err != nil {
			return r.reject(sessionID, emitter, err)
		}
		return r.HumanMove(sessionID, pos, emitter)
	case EventPostGameQuery:
		text, err := decodeQuery(payload)
		if err != nil {
			return r.reject(sessionID, emitter, err)
		}
		return r.PostGameQuery(sessionID, text, emitter)
	default:
		return r.reject(sessionID, emitter, core.NewProtocolError(fmt.Sprintf("unknown event %q", event), nil))
	}
}

// Connect creates the session of a new connection and sends the initial board.
func (r *Relay) Connect(sessionID string, emitter core.Emitter) error {
	gs, _ := r.registry.GetOrCreate(sessionID, emitter)
	return r.submit(gs, func(ctx context.Context) {
		gs.NotifyBoard(ctx)
		_ = r.orch.Start(ctx, gs)
	})
}

// Reset starts a new game. A running agent turn is interrupted first.
func (r *Relay) Reset(sessionID string, emitter core.Emitter) error {
	gs, _ := r.registry.GetOrCreate(sessionID, emitter)
	gs.Interrupt()

	return r.submit(gs, func(ctx context.Context) {
		if _, err := r.registry.Reset(sessionID); err != nil {
			gs.NotifyError(ctx, err)
			return
		}
		gs.NotifyBoard(ctx)
		gs.Notify(ctx, core.KindStatus, core.StatusText{
			Text: fmt.Sprintf("New game! You play %s.", gs.Human.Mark()),
		})
		_ = r.orch.Start(ctx, gs)
	})
}

// HumanMove applies a human move and hands the turn to the agent when the
// move was accepted. The session is created implicitly.
func (r *Relay) HumanMove(sessionID string, position int, emitter core.Emitter) error {
	gs, _ := r.registry.GetOrCreate(sessionID, emitter)

	return r.submit(gs, func(ctx context.Context) {
		outcome := gs.Validator.Apply(gs.Human, position)
		gs.Notify(ctx, core.KindMoveResult, core.NewMoveResult(outcome))
		if !outcome.Accepted {
			return
		}
		gs.NotifyBoard(ctx)
		_ = r.orch.HumanMoved(ctx, gs, outcome)
	})
}

// PostGameQuery routes a question to the agent. It requires a session.
func (r *Relay) PostGameQuery(sessionID, text string, emitter core.Emitter) error {
	gs, ok := r.registry.Get(sessionID)
	if !ok {
		return r.reject(sessionID, emitter, core.ErrSessionNotFound)
	}

	return r.submit(gs, func(ctx context.Context) {
		_ = r.orch.Converse(ctx, gs, text)
	})
}

// Disconnect cancels in-flight work and tears the session down.
func (r *Relay) Disconnect(sessionID string) {
	if r.registry.Teardown(sessionID) {
		r.logger.Info("relay.session.closed", "session_id", sessionID)
	}
}

func (r *Relay) submit(gs *session.GameSession, fn session.Job) error {
	if _, err := gs.Submit(fn); err != nil {
		r.logger.Warn("relay.submit.failed", "session_id", gs.ID, "error", err.Error())
		return err
	}
	return nil
}

// reject sends an ERROR without touching the game. An existing session
// gets it through its task queue, behind the work already queued.
func (r *Relay) reject(sessionID string, emitter core.Emitter, err error) error {
	e := core.AsError(err)
	r.logger.Warn("relay.event.rejected", "session_id", sessionID, "code", e.Code, "error", e.Error())

	if gs, ok := r.registry.Get(sessionID); ok {
		if _, subErr := gs.Submit(func(ctx context.Context) { gs.NotifyError(ctx, e) }); subErr == nil {
			return e
		}
	}
	if emitter == nil {
		return e
	}

	n := core.Notification{
		Kind:      core.KindError,
		SessionID: sessionID,
		Payload:   e.Payload(),
		Timestamp: time.Now(),
	}
	if emitErr := emitter.Emit(context.Background(), n); emitErr != nil {
		return errors.Join(e, emitErr)
	}
	return e
}

// decode round-trips an arbitrary transport payload through JSON.
func decode(payload any, v any) error {
	var raw []byte
	switch p := payload.(type) {
	case nil:
		return errors.New("missing payload")
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	case string:
		raw = []byte(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, v)
}

func decodeMove(payload any) (int, error) {
	var in struct {
		Position *float64 `json:"position"`
	}
	if err := decode(payload, &in); err != nil {
		return 0, core.NewProtocolError("invalid move payload", err)
	}
	if in.Position == nil {
		return 0, core.NewProtocolError("invalid move payload", errors.New("position is required"))
	}
	p := *in.Position
	if p != math.Trunc(p) || math.IsInf(p, 0) || p > math.MaxInt32 || p < math.MinInt32 {
		return 0, core.NewProtocolError("invalid move payload", fmt.Errorf("position must be an integer, got %v", p))
	}
	return int(p), nil
}

func decodeQuery(payload any) (string, error) {
	var in struct {
		Query string `json:"query"`
		Text  string `json:"text"`
	}
	if err := decode(payload, &in); err != nil {
		return "", core.NewProtocolError("invalid query payload", err)
	}
	text := strings.TrimSpace(in.Query)
	if text == "" {
		text = strings.TrimSpace(in.Text)
	}
	if text == "" {
		return "", core.NewProtocolError("invalid query payload", errors.New("query is empty"))
	}
	return text, nil
}
