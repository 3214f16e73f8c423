// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreRecordNotFound      Code = "store.record.get.not_found"
	CodeStoreRecordInsertInvalid Code = "store.record.insert.invalid_input"
	CodeStoreSettingNotFound     Code = "store.setting.get.not_found"
	CodeStoreDatabaseFailure     Code = "store.database.failure"
	CodeStoreBackendUnsupported  Code = "store.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeMitigationReportInvalid     Code = "mitigation.report.invalid_input"
	CodeMitigationSerializeFailure  Code = "mitigation.report.serialize.failure"
	CodeMitigationStateReadFailure  Code = "mitigation.state.read.failure"
	CodeMitigationStateWriteFailure Code = "mitigation.state.write.failure"

	CodeTelemetrySendFailure     Code = "telemetry.send.failure"
	CodeTelemetryEnvelopeFailure Code = "telemetry.envelope.failure"

	CodeServiceRestartFailure Code = "service.restart.failure"

	CodeMonitorProbeFailure    Code = "monitor.probe.failure"
	CodeMonitorResponseInvalid Code = "monitor.probe.response.invalid"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerInternalFailure Code = "server.internal.failure"

	CodeCLIDaemonNotRunning Code = "cli.daemon.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldRecordID(value string) Attr {
	return Field("record_id", value)
}

func FieldSettingKey(value string) Attr {
	return Field("setting_key", value)
}

func FieldEvent(value string) Attr {
	return Field("event", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsStoreFailure(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "store.") && reason(CodeOf(err)) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
