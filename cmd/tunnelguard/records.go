// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List recent health records",
		RunE:  runRecords,
	}

	cmd.Flags().String("address", defaultDaemonAddr, "daemon address")
	cmd.Flags().Int("limit", 20, "maximum records to show")

	return cmd
}

func runRecords(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()

	dc := newDaemonClient(addr)
	var body struct {
		Records []*store.HealthRecord `json:"records"`
	}
	if err := dc.getJSON(fmt.Sprintf("/api/v1/records?limit=%d", limit), &body); err != nil {
		return err
	}

	if len(body.Records) == 0 {
		_, err := fmt.Fprintln(out, "No health records.")
		return err
	}

	for _, rec := range body.Records {
		line := fmt.Sprintf("%s  %-4s", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Type)
		if len(rec.Alerts) > 0 {
			line += "  " + strings.Join(rec.Alerts, ",")
		}
		if rec.RestartedAt != nil {
			line += fmt.Sprintf("  restartedAt=%d", *rec.RestartedAt)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
