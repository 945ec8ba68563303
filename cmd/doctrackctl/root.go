package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"doctrack/internal/app"
	"doctrack/internal/platform/config"
	"doctrack/internal/platform/logger"
)

// errDrift makes verify exit with status 2 without printing usage.
var errDrift = errors.New("projection drift detected")

func exitCode(err error) int {
	if errors.Is(err, errDrift) {
		return 2
	}
	return 1
}

// env is what every subcommand needs. Tests replace openStores.
type env struct {
	loadConfig func() (config.Server, error)
	openStores func(ctx context.Context, cfg config.Server, log *slog.Logger) (*app.Stores, error)
	newLogger  func(cfg config.Server, stderr io.Writer) *slog.Logger
}

func defaultEnv() env {
	return env{
		loadConfig: config.FromEnv,
		openStores: app.OpenStores,
		newLogger: func(cfg config.Server, stderr io.Writer) *slog.Logger {
			return logger.NewWithWriter(stderr, cfg.LogLevel)
		},
	}
}

// session is a loaded config, logger and open stores for one command run.
type session struct {
	cfg    config.Server
	log    *slog.Logger
	stores *app.Stores
}

func (e env) open(cmd *cobra.Command) (*session, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	log := e.newLogger(cfg, cmd.ErrOrStderr())
	stores, err := e.openStores(cmd.Context(), cfg, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, stores: stores}, nil
}

func newRootCmd(e env) *cobra.Command {
	root := &cobra.Command{
		Use:           "doctrackctl",
		Short:         "Operator commands for the doctrack document routing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(e),
		newAnalyticsCmd(e),
		newVerifyCmd(e),
		newTokenCmd(e),
	)
	return root
}
