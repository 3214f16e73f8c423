// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by daemon
// commands. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// daemonClient provides HTTP access to a running tunnelguard daemon.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

// newDaemonClient creates a client targeting the given host:port address.
func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *daemonClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return tgerr.New(tgerr.CodeCLIDaemonNotRunning, "daemon is not running (connection refused)")
		}
		return tgerr.Errorf(tgerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, dest)
}

// putJSON performs a PUT request with a JSON body and decodes the JSON
// response into dest.
func (c *daemonClient) putJSON(path string, body, dest any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return tgerr.Errorf(tgerr.CodeCLIRequestFailure, "encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return tgerr.Errorf(tgerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return tgerr.New(tgerr.CodeCLIDaemonNotRunning, "daemon is not running (connection refused)")
		}
		return tgerr.Errorf(tgerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, dest)
}

func decodeResponse(resp *http.Response, dest any) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return tgerr.Errorf(tgerr.CodeCLIRequestFailure, "daemon returned status %d: %s", resp.StatusCode, string(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return tgerr.Errorf(tgerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused,
// etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
