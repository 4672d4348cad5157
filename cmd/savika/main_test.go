// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points the XDG directories at a temp dir so no user config leaks in.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir+"/config")
	t.Setenv("XDG_STATE_HOME", dir+"/state")
	configFile = ""
	return dir
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, shellDeps *ShellDeps, migrateDeps *MigrateDeps, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(shellDeps, migrateDeps)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	isolateEnv(t)
	output, err := execute(t, nil, nil, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"shell", "check", "migrate", "config"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "with equals",
			args:     []string{"--config=/etc/savika.yaml", "--help"},
			wantFlag: "/etc/savika.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			_, err := execute(t, nil, nil, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}
