// Package main provides the promptvault server and admin CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/thebtf/promptvault/internal/config"
	dbgorm "github.com/thebtf/promptvault/internal/db/gorm"
	"github.com/thebtf/promptvault/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

// restartExitCode tells a supervisor the process stopped to pick up new settings.
const restartExitCode = 3

func main() {
	err := newRootCmd().Execute()
	if errors.Is(err, errRestart) {
		os.Exit(restartExitCode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "promptvault",
		Short:         "Prompt storage server with folders, teams and version history",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "Override the configured log level")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())
	return root
}

// bootstrap prepares the data directory, loads the configuration and
// installs the logger. The closer releases the log file.
func bootstrap(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	if err := config.EnsureAll(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}

// openStore connects to the configured database and applies pending migrations.
func openStore(cfg *config.Config) (*dbgorm.Store, error) {
	if cfg.DBDriver == dbgorm.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	gormLevel := logger.Silent
	if cfg.LogLevel == "debug" {
		gormLevel = logger.Warn
	}

	store, err := dbgorm.NewStore(dbgorm.Config{
		Driver:   cfg.DBDriver,
		Path:     cfg.DBPath,
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.MaxConns,
		LogLevel: gormLevel,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("driver", store.Driver()).Msg("Database ready")
	return store, nil
}
