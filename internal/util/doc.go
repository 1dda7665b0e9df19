// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the storage, export and cli
// packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth: display-width aware helpers for table output
//   - ExpandHome: "~/" expansion for configured paths
//
// # Usage
//
//	// Write the snapshot atomically to prevent a torn file on crash
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Fit a Cyrillic title into a 30 column list cell
//	cell := util.PadWidth(util.TruncateWidth(title, 30), 30)
package util
