// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchema is the minimal shape a persisted snapshot must have to be
// trusted: at least one conversation and a non-empty active id.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["chats", "currentChatId"],
  "properties": {
    "chats": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "title", "messages"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "messages": {
            "type": ["array", "null"],
            "items": {"$ref": "#/definitions/message"}
          }
        }
      }
    },
    "currentChatId": {"type": "string", "minLength": 1}
  },
  "definitions": {
    "message": {
      "type": "object",
      "required": ["role", "content"],
      "properties": {
        "id": {"type": "string"},
        "role": {"enum": ["user", "model"]},
        "content": {"type": "string"},
        "isLoading": {"type": "boolean"},
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
}`

var (
	compiledSnapshotSchema *gojsonschema.Schema
	compileSnapshotOnce    sync.Once
	compileSnapshotErr     error
)

// validateSnapshot checks raw snapshot JSON against snapshotSchema.
func validateSnapshot(data []byte) error {
	compileSnapshotOnce.Do(func() {
		compiledSnapshotSchema, compileSnapshotErr = gojsonschema.NewSchema(
			gojsonschema.NewStringLoader(snapshotSchema))
	})
	if compileSnapshotErr != nil {
		return fmt.Errorf("snapshot schema: %w", compileSnapshotErr)
	}

	result, err := compiledSnapshotSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate snapshot: %w", err)
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return fmt.Errorf("snapshot does not match schema: %s", strings.Join(descs, "; "))
	}
	return nil
}
