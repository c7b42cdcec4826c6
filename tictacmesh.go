// Package tictacmesh provides a high-level façade that assembles a complete
// tic-tac-toe agent server: a decision process (model), the agent turn
// orchestrator, the session registry, the event relay and the socket.io
// transport. Most applications interact with this package by:
//  1. Building a model.Model, either directly or via NewModel from config
//  2. Creating a TicTacMesh via New (or NewFromConfig)
//  3. Serving it with Serve, or mounting Handler on an existing HTTP server
//
// All defaults are safe for local development; the default model endpoint is
// an OpenAI compatible server on localhost.
package tictacmesh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tictacmesh/config"
	"github.com/hupe1980/tictacmesh/game"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/hupe1980/tictacmesh/model"
	"github.com/hupe1980/tictacmesh/model/anthropic"
	"github.com/hupe1980/tictacmesh/model/openai"
	"github.com/hupe1980/tictacmesh/orchestrator"
	"github.com/hupe1980/tictacmesh/relay"
	"github.com/hupe1980/tictacmesh/server"
	"github.com/hupe1980/tictacmesh/session"
)

// Options configures the TicTacMesh instance.
type Options struct {
	// StartingPlayer moves first in every game (defaults to the human).
	StartingPlayer game.Player
	// RetainConversationOnReset keeps the agent's conversation across resets.
	RetainConversationOnReset bool

	// Orchestrator and Server are passed through to their constructors.
	Orchestrator orchestrator.Options
	Server       server.Options

	// ShutdownTimeout bounds graceful HTTP shutdown in Serve.
	ShutdownTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// TicTacMesh is the assembled server.
type TicTacMesh struct {
	opts     Options
	registry *session.Registry
	orch     *orchestrator.Orchestrator
	relay    *relay.Relay
	server   *server.Server
	logger   logging.Logger
}

// New wires every component around the given decision process.
func New(m model.Model, optFns ...func(o *Options)) *TicTacMesh {
	opts := Options{
		StartingPlayer:  game.First,
		Orchestrator:    orchestrator.DefaultOptions(),
		Server:          server.DefaultOptions(),
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	orch := orchestrator.New(m, func(o *orchestrator.Options) {
		*o = opts.Orchestrator
		o.Logger = component(opts.Logger, "orchestrator")
	})

	registry := session.NewRegistry(func(o *session.Options) {
		o.StartingPlayer = opts.StartingPlayer
		o.RetainConversationOnReset = opts.RetainConversationOnReset
		o.Binder = orch.Bind
		o.Logger = component(opts.Logger, "registry")
	})

	rl := relay.New(registry, orch, func(o *relay.Options) {
		o.Logger = component(opts.Logger, "relay")
	})

	srv := server.New(rl, func(o *server.Options) {
		*o = opts.Server
		o.Logger = component(opts.Logger, "server")
	})

	return &TicTacMesh{
		opts:     opts,
		registry: registry,
		orch:     orch,
		relay:    rl,
		server:   srv,
		logger:   opts.Logger,
	}
}

// NewFromConfig builds the model selected by cfg and wires the server around it.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (*TicTacMesh, error) {
	m, err := NewModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	starting, err := cfg.StartingPlayer()
	if err != nil {
		return nil, err
	}

	return New(m, func(o *Options) {
		o.StartingPlayer = starting
		o.RetainConversationOnReset = cfg.Game.RetainConversation
		o.Orchestrator.Name = cfg.Game.AgentName
		o.Orchestrator.MaxAgentRuns = cfg.Game.MaxAgentRuns
		o.Orchestrator.MaxModelCalls = cfg.Game.MaxModelCalls
		o.Orchestrator.PostGameCommentary = !cfg.Game.DisableCommentary
		o.Orchestrator.Stream = !cfg.Game.DisableStreaming
		o.Server.Path = cfg.Server.SocketPath
		o.Server.AllowedOrigins = cfg.Server.AllowedOrigins
		o.Logger = logger
	}), nil
}

// NewModel builds the decision process named by cfg.Provider.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.OpenAI.ModelID
			o.BaseURL = cfg.OpenAI.BaseURL
			o.APIKey = cfg.OpenAI.APIKey
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Anthropic.ModelID)
			o.APIKey = cfg.Anthropic.APIKey
			o.ThinkingBudget = cfg.Anthropic.ThinkingBudget
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
		}), nil
	case config.ProviderMock:
		return model.NewMockModel("mock"), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}

// Handler returns the HTTP handler serving REST endpoints and socket.io.
func (t *TicTacMesh) Handler() http.Handler { return t.server.Handler() }

// Relay returns the inbound event relay.
func (t *TicTacMesh) Relay() *relay.Relay { return t.relay }

// Registry returns the session registry.
func (t *TicTacMesh) Registry() *session.Registry { return t.registry }

// Orchestrator returns the agent turn orchestrator.
func (t *TicTacMesh) Orchestrator() *orchestrator.Orchestrator { return t.orch }

// Serve listens on addr until ctx is cancelled or the listener fails, then
// shuts the HTTP server down gracefully and tears down every session.
func (t *TicTacMesh) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t.logger.Info("server.listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		t.logger.Info("server.shutdown", "addr", addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), t.opts.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		_ = t.Close()
		return err
	})

	return g.Wait()
}

// Close stops the transport and tears down every session. It is idempotent.
func (t *TicTacMesh) Close() error {
	return t.server.Close()
}

func component(l logging.Logger, name string) logging.Logger {
	if sl, ok := l.(*logging.SessionLogger); ok {
		return sl.WithComponent(name)
	}
	return l
}
