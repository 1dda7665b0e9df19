// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes one conversation as a transcript file.
//
// # Supported Formats
//
//   - Markdown: answers rendered as written, sources listed under each answer
//   - JSON: the stored conversation shape
//   - YAML: a flat transcript for hand editing or diffing
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exporter, opts)
package export
