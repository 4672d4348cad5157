// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/savika/savika/internal/config"
	"github.com/savika/savika/internal/logging"
	"github.com/savika/savika/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the savika CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil, nil)
}

func newRootCmd(shellDeps *ShellDeps, migrateDeps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "savika",
		Short: "savika - credential validation and sign-in",
		Long: `savika validates credential forms (registration, login, password
recovery and reset) and submits them to a hosted authentication provider.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/savika/config.yaml)")
	cmd.PersistentFlags().String("log-format", "text", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newShellCmd(shellDeps))
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newMigrateCmd(migrateDeps))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig layers the config file, environment and the command's flags.
// An explicit --config must exist; the default path is optional.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	src := config.Source{File: configFile, Required: configFile != "", Flags: cmd.Flags()}
	if src.File == "" {
		path, err := xdg.ConfigFile()
		if err == nil {
			src.File = path
		}
	}
	return config.Load(src)
}

// newLogger builds the command logger writing to w.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.Setup("savika", version, logging.Options{Format: cfg.Log.Format, Level: cfg.Log.Level}, w)
}
