// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate", "status"} {
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
			args:     []string{"--config=/etc/agora.yaml", "--help"},
			wantFlag: "/etc/agora.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_RegistersConfigFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"database-url", "redis-addr", "frontend-url", "http-addr", "env-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestLoadConfig_FlagsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agora.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  url: postgres://file/agora\nlog:\n  format: text\n"), 0o600))
	t.Setenv("AGORA_REDIS_ADDR", "redis.internal:6379")

	var loaded struct {
		dbURL, redisAddr, logFormat string
	}
	cmd := NewRootCmd()
	cmd.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			loaded.dbURL = cfg.Database.URL
			loaded.redisAddr = cfg.Redis.Addr
			loaded.logFormat = cfg.Log.Format
			return nil
		},
	})
	cmd.SetArgs([]string{"--config", path, "--env-file", filepath.Join(dir, "missing.env"),
		"probe", "--database-url", "postgres://flag/agora"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "postgres://flag/agora", loaded.dbURL)
	assert.Equal(t, "redis.internal:6379", loaded.redisAddr)
	assert.Equal(t, "text", loaded.logFormat)
}
