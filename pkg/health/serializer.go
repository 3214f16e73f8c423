// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package health

import (
	"encoding/json"

	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// Serializer turns a report into its canonical persisted string form.
type Serializer interface {
	Serialize(report Report) (string, error)
}

// JSONSerializer is the default Serializer, producing compact JSON.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(report Report) (string, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return "", tgerr.Wrap(err, tgerr.CodeMitigationSerializeFailure, "serializing health report")
	}
	return string(raw), nil
}
