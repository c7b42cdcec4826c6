package session

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/logging"
)

// Options configure a Registry.
type Options struct {
	// StartingPlayer moves first in every game. Defaults to game.First (the human).
	StartingPlayer game.Player
	// RetainConversationOnReset keeps the conversation across resets.
	RetainConversationOnReset bool
	// Binder builds the agent binding of new sessions.
	Binder Binder
	Logger logging.Logger
}

// Registry is the synchronized map from session id to GameSession. It is
// safe for concurrent access.
type Registry struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*GameSession
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		StartingPlayer: game.First,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Registry{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*GameSession),
	}
}

// GetOrCreate returns the session for id, constructing it when absent. The
// boolean reports whether a new session was created. Concurrent first
// contacts for one id observe the same session.
func (r *Registry) GetOrCreate(id string, emitter core.Emitter) (*GameSession, bool) {
	r.mu.RLock()
	gs, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return gs, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gs, ok := r.sessions[id]; ok {
		return gs, false
	}

	gs = r.newSessionLocked(id, emitter)
	r.sessions[id] = gs

	gs.logger.Info("session.created", "starting_player", gs.Engine.StartingPlayer().Mark())

	return gs, true
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gs, ok := r.sessions[id]
	return gs, ok
}

// Reset reinitializes the game of an existing session in place. It must run
// on the session's task queue.
func (r *Registry) Reset(id string) (*GameSession, error) {
	gs, ok := r.Get(id)
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	gs.reset(r.opts.RetainConversationOnReset)
	gs.logger.Info("session.reset", "retain_conversation", r.opts.RetainConversationOnReset)

	return gs, nil
}

// Teardown removes the session, cancels its in-flight work and waits for its
// task queue to stop. Tearing down an absent session is a no-op. Teardown
// must not be called from a job of the same session.
func (r *Registry) Teardown(id string) bool {
	r.mu.Lock()
	gs, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}

	<-gs.queue.close()

	gs.mu.Lock()
	gs.conversation = nil
	gs.mu.Unlock()

	gs.logger.Info("session.teardown", "lifetime_ms", time.Since(gs.Created).Milliseconds())

	return true
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Teardown(id)
	}

	r.cancel()
}

func (r *Registry) newSessionLocked(id string, emitter core.Emitter) *GameSession {
	if emitter == nil {
		emitter = core.EmitterFunc(func(context.Context, core.Notification) error { return nil })
	}

	logger := r.opts.Logger
	if sl, ok := logger.(*logging.SessionLogger); ok {
		logger = sl.WithSession(id, "")
	}

	engine := game.NewEngine(r.opts.StartingPlayer)
	gs := &GameSession{
		ID:           id,
		Created:      time.Now(),
		Engine:       engine,
		Validator:    game.NewValidator(engine),
		Human:        game.First,
		emitter:      emitter,
		logger:       logger,
		queue:        newTaskQueue(r.ctx, logger),
		conversation: core.NewConversation(),
	}

	gs.Agent = AgentBinding{Name: "agent", Player: gs.Human.Opponent()}
	if r.opts.Binder != nil {
		gs.Agent = r.opts.Binder(gs)
	}

	return gs
}
