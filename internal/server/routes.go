// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
	"github.com/tunnelguard-dev/tunnelguard/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Mitigation status",
		Tags:        []string{"mitigation"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-mitigation",
		Method:      http.MethodPut,
		Path:        "/api/v1/mitigation",
		Summary:     "Enable or disable bad-health mitigation",
		Tags:        []string{"mitigation"},
	}, s.handleSetMitigation)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/api/v1/records",
		Summary:     "List recent health records",
		Tags:        []string{"records"},
	}, s.handleListRecords)

	huma.Register(s.api, huma.Operation{
		OperationID: "submit-health-report",
		Method:      http.MethodPost,
		Path:        "/api/v1/health-report",
		Summary:     "Submit a health report",
		Description: "Push intake for deployments where the tunnel daemon reports health instead of being probed.",
		Tags:        []string{"mitigation"},
	}, s.handleHealthReport)
}

// --- Request/Response types for huma ---

type statusBody struct {
	Enabled         bool                `json:"enabled" doc:"Whether bad-health mitigation is enabled"`
	BackoffSeconds  int64               `json:"backoffSeconds" doc:"Current backoff increment, 0 before any restart"`
	RestartBoundary string              `json:"restartBoundary,omitempty" doc:"No restart is allowed before this UTC timestamp"`
	LatestRecord    *store.HealthRecord `json:"latestRecord,omitempty" doc:"Most recent health record, if any"`
}

type statusOutput struct {
	Body statusBody
}

type setMitigationInput struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Desired mitigation state"`
	}
}

type setMitigationOutput struct {
	Body struct {
		Enabled bool `json:"enabled"`
	}
}

type listRecordsInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum records to return, newest first"`
}

type listRecordsOutput struct {
	Body struct {
		Records []*store.HealthRecord `json:"records"`
	}
}

type healthReportInput struct {
	Body health.Report
}

type healthReportOutput struct {
	Body struct {
		Restarting bool `json:"restarting" doc:"Whether a tunnel restart was triggered"`
	}
}

// --- Handlers ---

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	enabled, err := s.deps.Controller.IsEnabled(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading mitigation state", err)
	}

	state, err := s.deps.Policy.State(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading backoff state", err)
	}

	out := &statusOutput{}
	out.Body.Enabled = enabled
	out.Body.BackoffSeconds = state.BackoffSeconds
	out.Body.RestartBoundary = state.RestartBoundary

	latest, err := s.deps.Records.Latest(ctx)
	switch {
	case err == nil:
		out.Body.LatestRecord = latest
	case !tgerr.IsNotFound(err):
		return nil, huma.Error500InternalServerError("reading latest record", err)
	}

	return out, nil
}

func (s *Server) handleSetMitigation(ctx context.Context, input *setMitigationInput) (*setMitigationOutput, error) {
	if err := s.deps.Controller.SetEnabled(ctx, input.Body.Enabled); err != nil {
		return nil, huma.Error500InternalServerError("updating mitigation state", err)
	}

	s.log.Info("mitigation state changed", "enabled", input.Body.Enabled)

	out := &setMitigationOutput{}
	out.Body.Enabled = input.Body.Enabled
	return out, nil
}

func (s *Server) handleListRecords(ctx context.Context, input *listRecordsInput) (*listRecordsOutput, error) {
	records, err := s.deps.Records.Recent(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing health records", err)
	}

	out := &listRecordsOutput{}
	out.Body.Records = records
	if out.Body.Records == nil {
		out.Body.Records = []*store.HealthRecord{}
	}
	return out, nil
}

func (s *Server) handleHealthReport(ctx context.Context, input *healthReportInput) (*healthReportOutput, error) {
	restarting, err := s.deps.Controller.OnHealthUpdate(ctx, input.Body)
	if err != nil {
		return nil, huma.Error500InternalServerError("processing health report", err)
	}

	out := &healthReportOutput{}
	out.Body.Restarting = restarting
	return out, nil
}
