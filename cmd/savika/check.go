// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/savika/savika/internal/credential"
)

// newCheckCmd creates the check subcommand.
func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check an email address or password without submitting it",
	}
	cmd.AddCommand(newCheckEmailCmd())
	cmd.AddCommand(newCheckPasswordCmd())
	return cmd
}

func newCheckEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "email <address>",
		Short: "Report whether an email address is well formed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !credential.ValidateEmail(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%q: invalid\n", args[0])
				return oops.Code("EMAIL_INVALID").With("email", args[0]).Errorf("invalid email address")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", credential.NormalizeEmail(args[0]))
			return nil
		},
	}
}

// passwordReport is the --json output of check password.
type passwordReport struct {
	credential.Strength
	Band  credential.Band `json:"band"`
	Max   int             `json:"max"`
	Valid bool            `json:"valid"`
}

func newCheckPasswordCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "password <password>",
		Short: "Score a password against the composition rules",
		Long: `Score a password against the five composition rules. Forms only accept
passwords that satisfy all of them; the command exits non-zero otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strength := credential.ScorePassword(args[0])
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				report := passwordReport{Strength: strength, Band: strength.Band(), Max: credential.MaxScore, Valid: strength.Excellent()}
				if err := enc.Encode(report); err != nil {
					return oops.Code("OUTPUT_FAILED").Wrap(err)
				}
			} else {
				printStrength(cmd.OutOrStdout(), strength)
			}
			if !strength.Excellent() {
				return oops.Code("PASSWORD_WEAK").With("score", strength.Score).Errorf("password does not satisfy every rule")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
