// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/savika/savika/internal/config"
	"github.com/savika/savika/internal/xdg"
)

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect savika configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file against the schema and cross-field rules",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigValidate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the config JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return cmd
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("file", path).Wrap(err)
	}
	if err := config.ValidateDocument(data); err != nil {
		return err
	}

	cfg, err := config.Load(config.Source{File: path, Required: true})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	return nil
}
