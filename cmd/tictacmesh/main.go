// Command tictacmesh serves the tic-tac-toe agent over socket.io.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/hupe1980/tictacmesh"
	"github.com/hupe1980/tictacmesh/config"
	"github.com/hupe1980/tictacmesh/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		port       int
		debug      bool
	)

	flagSet := pflag.NewFlagSet("tictacmesh", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flagSet.IntVarP(&port, "port", "p", 0, "listen port (overrides API_PORT and the config file)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging and gin debug mode")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Merge(&config.Config{
		Server: config.ServerConfig{Port: port},
	})
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.NewLogger(cfg.LoggerConfig())
	logger.Info("tictacmesh.starting",
		"environment", cfg.Environment,
		"provider", cfg.Model.Provider,
		"addr", cfg.Addr(),
		"starting_player", cfg.Game.StartingPlayer,
	)

	app, err := tictacmesh.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg.Addr()); err != nil {
		logger.Error("tictacmesh.stopped", "error", err)
		return err
	}
	logger.Info("tictacmesh.stopped")
	return nil
}
