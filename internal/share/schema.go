// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package share

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// payloadSchema requires a non-empty title string and a messages list; each message
// needs a known role and string content.
const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "messages"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {"enum": ["user", "model"]},
          "content": {"type": "string"},
          "sources": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["uri"],
              "properties": {
                "uri": {"type": "string"},
                "title": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(payloadSchema)

func validatePayload(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate payload: %v", err)
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("payload does not match schema: %s", strings.Join(errs, "; "))
}
