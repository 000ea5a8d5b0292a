// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/agora-forum/agora/internal/config"
	"github.com/agora-forum/agora/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFiles   []string
)

// NewRootCmd creates the root command for the Agora CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agora",
		Short: "Agora - a small forum API",
		Long: `Agora serves the forum API: session based accounts with password
recovery by email, and a paginated feed of posts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/agora/config.yaml if present)")
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load (missing files are ignored)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// loadConfig reads configuration for cmd from the file, dotenv files,
// AGORA_* variables and the flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.LoadOptions{
		ConfigFile: path,
		EnvFiles:   envFiles,
		Flags:      cmd.Flags(),
	})
}
