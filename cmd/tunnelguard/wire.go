// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tunnelguard-dev/tunnelguard/internal/config"
	"github.com/tunnelguard-dev/tunnelguard/internal/metrics"
	"github.com/tunnelguard-dev/tunnelguard/internal/mitigation"
	"github.com/tunnelguard-dev/tunnelguard/internal/monitor"
	"github.com/tunnelguard-dev/tunnelguard/internal/server"
	"github.com/tunnelguard-dev/tunnelguard/internal/service"
	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	_ "github.com/tunnelguard-dev/tunnelguard/internal/store/sqlite" // register sqlite backend
	"github.com/tunnelguard-dev/tunnelguard/internal/telemetry"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// Daemon holds all wired subsystems and manages their lifecycle.
type Daemon struct {
	Server     *server.Server
	Monitor    *monitor.Monitor
	Controller *mitigation.Controller
	Settings   store.SettingsStore
	Records    store.HealthRecordStore
}

// WireDaemon creates all subsystems and wires them together. The dataDir
// is the root directory for all persistent state.
func WireDaemon(ctx context.Context, cfg *config.Config, dataDir string, log *slog.Logger) (*Daemon, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Stores.
	settings, records, err := store.NewStores(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
	if err != nil {
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating stores: %w", err)
	}

	// Seed the enabled flag from config only on first start; afterwards the
	// persisted flag is authoritative and toggled through the admin API.
	if has, err := settings.Has(ctx, store.KeyMitigationEnabled); err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "reading enabled flag: %w", err)
	} else if !has {
		if err := settings.PutBool(ctx, store.KeyMitigationEnabled, cfg.Mitigation.Enabled); err != nil {
			_ = settings.Close()
			return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "seeding enabled flag: %w", err)
		}
	}

	// 2. Metrics and telemetry.
	reg := prometheus.NewRegistry()
	m := metrics.NewWith(reg)

	env, err := telemetry.CollectEnvelope(ctx, cfg.Telemetry.InternalBuild)
	if err != nil {
		log.Warn("collecting telemetry envelope failed, reporting without host info", "error", err)
	}

	var sink telemetry.Sink = telemetry.NoopSink{}
	if cfg.Telemetry.Endpoint != "" {
		httpSink, err := telemetry.NewHTTPSink(cfg.Telemetry.Endpoint)
		if err != nil {
			_ = settings.Close()
			return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating telemetry sink: %w", err)
		}
		sink = httpSink
	}

	emitter := telemetry.NewEmitter(sink, env, m,
		telemetry.WithDebounceWindow(time.Duration(cfg.Mitigation.DebounceWindowMillis)*time.Millisecond),
		telemetry.WithLogger(log),
	)

	// 3. Restart policy and tunnel restarter.
	policy, err := mitigation.NewRestartPolicy(settings, time.Duration(cfg.Mitigation.InitialBackoffSeconds)*time.Second)
	if err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating restart policy: %w", err)
	}

	tunnelSvc, err := service.NewHTTPTunnelService(cfg.Tunnel.ControlEndpoint)
	if err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating tunnel service: %w", err)
	}
	restarter := service.NewRestarter(tunnelSvc, emitter, log)

	// 4. Mitigation controller.
	ctrl, err := mitigation.NewController(mitigation.Config{
		Settings:         settings,
		Records:          records,
		Policy:           policy,
		Restarter:        restarter,
		Emitter:          emitter,
		Metrics:          m,
		ResolutionWindow: time.Duration(cfg.Mitigation.ResolutionWindowSeconds) * time.Second,
		Logger:           log,
	})
	if err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating controller: %w", err)
	}

	// 5. Health monitor probing the tunnel daemon.
	source, err := monitor.NewHTTPHealthSource(cfg.Tunnel.HealthEndpoint)
	if err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating health source: %w", err)
	}

	mon, err := monitor.New(monitor.Config{
		Source:        source,
		Updater:       ctrl,
		Interval:      time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		Records:       records,
		RetainRecords: cfg.Storage.RetainRecords,
		Logger:        log,
	})
	if err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating monitor: %w", err)
	}

	// 6. Admin API server.
	srv, err := server.New(server.Config{
		ListenAddr: cfg.Networking.Listen,
	}, server.Deps{
		Controller: ctrl,
		Policy:     policy,
		Records:    records,
		Gatherer:   reg,
		Logger:     log,
	})
	if err != nil {
		_ = settings.Close()
		return nil, tgerr.Errorf(tgerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return &Daemon{
		Server:     srv,
		Monitor:    mon,
		Controller: ctrl,
		Settings:   settings,
		Records:    records,
	}, nil
}

// Start runs the monitor loop and HTTP server and blocks until the context
// is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	go d.Monitor.Run(ctx)
	return d.Server.Start(ctx)
}

// Close releases all resources held by the daemon.
func (d *Daemon) Close() error {
	var errs []error
	if err := d.Settings.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.Records.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
