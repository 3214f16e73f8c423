// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

const defaultDaemonAddr = "127.0.0.1:18790"

// statusBody mirrors the daemon's status response.
type statusBody struct {
	Enabled         bool                `json:"enabled"`
	BackoffSeconds  int64               `json:"backoffSeconds"`
	RestartBoundary string              `json:"restartBoundary"`
	LatestRecord    *store.HealthRecord `json:"latestRecord"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long:  "Check the running daemon's status endpoint and display mitigation state.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", defaultDaemonAddr, "daemon address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	dc := newDaemonClient(addr)
	var body statusBody
	if err := dc.getJSON("/api/v1/status", &body); err != nil {
		if tgerr.HasCode(err, tgerr.CodeCLIDaemonNotRunning) {
			_, _ = fmt.Fprintf(out, "Daemon at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Daemon at %s: %s\n", addr, err)
		return nil
	}

	state := "disabled"
	if body.Enabled {
		state = "enabled"
	}
	_, _ = fmt.Fprintf(out, "Daemon at %s\n", addr)
	_, _ = fmt.Fprintf(out, "  Mitigation:       %s\n", state)
	_, _ = fmt.Fprintf(out, "  Backoff:          %ds\n", body.BackoffSeconds)
	if body.RestartBoundary != "" {
		_, _ = fmt.Fprintf(out, "  Restart boundary: %s\n", body.RestartBoundary)
	}
	if body.LatestRecord != nil {
		_, _ = fmt.Fprintf(out, "  Latest record:    %s (%s)\n", body.LatestRecord.Type, body.LatestRecord.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
