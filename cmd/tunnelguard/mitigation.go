// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMitigationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mitigation",
		Short: "Control bad-health mitigation",
	}

	cmd.PersistentFlags().String("address", defaultDaemonAddr, "daemon address")

	cmd.AddCommand(
		newMitigationSetCmd("enable", "Enable bad-health mitigation", true),
		newMitigationSetCmd("disable", "Disable bad-health mitigation", false),
		newMitigationShowCmd(),
	)

	return cmd
}

func newMitigationSetCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("address")

			dc := newDaemonClient(addr)
			var body struct {
				Enabled bool `json:"enabled"`
			}
			req := map[string]bool{"enabled": enabled}
			if err := dc.putJSON("/api/v1/mitigation", req, &body); err != nil {
				return err
			}

			state := "disabled"
			if body.Enabled {
				state = "enabled"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Mitigation %s\n", state)
			return err
		},
	}
}

func newMitigationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show mitigation state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("address")

			dc := newDaemonClient(addr)
			var body statusBody
			if err := dc.getJSON("/api/v1/status", &body); err != nil {
				return err
			}

			state := "disabled"
			if body.Enabled {
				state = "enabled"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Mitigation %s (backoff %ds)\n", state, body.BackoffSeconds)
			return err
		},
	}
}
