// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tunnelguard-dev/tunnelguard/internal/config"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// NewRootCmd creates the root tunnelguard command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tunnelguard",
		Short:         "Tunnelguard — tunnel bad-health watchdog",
		Long:          "Tunnelguard watches a tunnel daemon's health and restarts it on persistent bad health, with exponential backoff.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newMitigationCmd(),
		newRecordsCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover tunnelguard.yaml from standard locations. No config
		// file is fine — defaults and env vars still apply. Parse or
		// permission errors must surface.
		// Note: SetConfigType is intentionally omitted. When set, Viper
		// falls back to trying the bare config name without extension,
		// which collides with the ./tunnelguard binary in the project root.
		v.SetConfigName("tunnelguard")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tunnelguard")
		v.AddConfigPath("/etc/tunnelguard")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere — bootstrap a default to
			// ~/.config/tunnelguard/.
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, err := config.BootstrapConfig(path); err != nil {
				return err
			}
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return tgerr.Errorf(tgerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
			}
		}
	}

	// Bind persistent flags to viper keys.
	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return tgerr.Errorf(tgerr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return tgerr.Errorf(tgerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
