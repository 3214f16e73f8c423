// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tunnelguard-dev/tunnelguard/internal/config"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tunnelguard daemon",
		Long:  "Load configuration, open the stores, and run the health monitor and admin API until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override admin API listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

// resolveConfig loads the effective start configuration: the explicit
// --config path when given, otherwise whatever file initViper discovered or
// bootstrapped into the global Viper, then the flag/env overrides Viper
// resolved on top.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = viper.ConfigFileUsed()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if listen := viper.GetString("networking.listen"); listen != "" {
		cfg.Networking.Listen = listen
	}
	if dataDir := viper.GetString("data_dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return err
		}
	}

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon, err := WireDaemon(ctx, cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer func() { _ = daemon.Close() }()

	log.Info("tunnelguard starting",
		"listen", cfg.Networking.Listen,
		"data_dir", dataDir,
		"tunnel_health", cfg.Tunnel.HealthEndpoint,
	)

	return daemon.Start(ctx)
}
