// Package server exposes the relay over socket.io and mounts it, together
// with a couple of plain HTTP endpoints, on a gin router.
//
// Every socket connection is one game session. Its socket id is the session
// id, and notifications for the session are emitted back on the same socket
// under the event name of their kind.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
	sockettypes "github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/logging"
	"github.com/hupe1980/tictacmesh/relay"
)

// Banner is the plain text body of GET /.
const Banner = "Welcome to the tic-tac-toe agent server!"

// Options configure a Server.
type Options struct {
	// Path is the socket.io mount point.
	Path           string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	AllowedOrigins []string
	Logger         logging.Logger
}

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		Path:           "/socket.io",
		PingInterval:   5 * time.Second,
		PingTimeout:    15 * time.Second,
		AllowedOrigins: []string{"*"},
		Logger:         logging.NoOpLogger{},
	}
}

// Server binds socket.io connections to a relay.
type Server struct {
	relay  *relay.Relay
	io     *socket.Server
	router *gin.Engine
	opts   Options
	logger logging.Logger
	known  map[string]struct{}
}

// New creates a server for the given relay.
func New(r *relay.Relay, optFns ...func(o *Options)) *Server {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	def := DefaultOptions()
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = def.AllowedOrigins
	}
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if opts.PingInterval <= 0 || opts.PingTimeout <= 0 {
		opts.PingInterval, opts.PingTimeout = def.PingInterval, def.PingTimeout
	}

	ioOpts := socket.DefaultServerOptions()
	ioOpts.SetCors(&sockettypes.Cors{
		Origin:      "*",
		Credentials: false,
	})
	ioOpts.SetPingInterval(opts.PingInterval)
	ioOpts.SetPingTimeout(opts.PingTimeout)
	ioOpts.SetPath(opts.Path)

	s := &Server{
		relay:  r,
		io:     socket.NewServer(nil, ioOpts),
		opts:   opts,
		logger: opts.Logger,
		known:  map[string]struct{}{relay.EventConnect: {}, relay.EventDisconnect: {}},
	}
	for _, event := range relay.Events {
		s.known[event] = struct{}{}
	}

	s.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		s.handleConnection(client)
	})

	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler serving both the REST endpoints and
// socket.io.
func (s *Server) Handler() http.Handler { return s.router }

// Close shuts down socket.io and tears down every session.
func (s *Server) Close() error {
	s.io.Close(nil)
	s.relay.Registry().Close()
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	allowAll := len(s.opts.AllowedOrigins) == 1 && s.opts.AllowedOrigins[0] == "*"
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if allowAll {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.opts.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))
	router.Use(requestLogger(s.logger))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Banner)
	})
	router.GET("/healthz", s.handleHealth)

	io := s.handleSocketIO()
	router.Any(s.opts.Path, io)
	router.Any(s.opts.Path+"/*any", io)
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.relay.Registry().Len(),
	})
}

func (s *Server) handleSocketIO() gin.HandlerFunc {
	h := s.io.ServeHandler(nil)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func (s *Server) handleConnection(client *socket.Socket) {
	id := string(client.Id())
	em := newEmitter(client)

	s.logger.Info("server.socket.connected", "session_id", id)
	_ = s.relay.Dispatch(id, relay.EventConnect, nil, em)

	for _, event := range relay.Events {
		client.On(event, func(data ...any) {
			var payload any
			if len(data) > 0 {
				payload = data[0]
			}
			if err := s.relay.Dispatch(id, event, payload, em); err != nil {
				s.logger.Debug("server.socket.rejected", "session_id", id, "event", event, "error", err)
			}
		})
	}

	// Names without a listener above would be dropped by socket.io; the relay
	// answers them with a protocol error.
	client.OnAny(func(args ...any) {
		s.dispatchUnknown(id, em, args...)
	})

	client.On("disconnect", func(reason ...any) {
		s.logger.Info("server.socket.disconnected", "session_id", id, "reason", reason)
		_ = s.relay.Dispatch(id, relay.EventDisconnect, nil, em)
	})
}

// dispatchUnknown forwards a catch-all event to the relay unless one of the
// named listeners already handled it. args[0] is the event name.
func (s *Server) dispatchUnknown(id string, em core.Emitter, args ...any) {
	if len(args) == 0 {
		return
	}
	event, _ := args[0].(string)
	if _, ok := s.known[event]; ok {
		return
	}

	var payload any
	if len(args) > 1 {
		payload = args[1]
	}
	if err := s.relay.Dispatch(id, event, payload, em); err != nil {
		s.logger.Warn("server.socket.unknown_event", "session_id", id, "event", event, "error", err)
	}
}

// newEmitter sends notifications to one socket.
func newEmitter(client *socket.Socket) core.Emitter {
	return core.EmitterFunc(func(ctx context.Context, n core.Notification) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		client.Emit(string(n.Kind), n.Payload)
		return nil
	})
}
