// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the elevatorapp command line.
//
// # Commands
//
//   - chat: interactive REPL with slash commands (/new, /attach, /dictate, ...)
//   - ask: one question in the active conversation
//   - list, new, select, delete, rename: conversation management
//   - share, import: share links
//   - export: transcript files
//   - watch: follow snapshot changes made by other processes
//   - version
//
// Every command loads the TOML config in PersistentPreRunE and initialises
// logging before it runs. Answers are printed from the store's event stream,
// so the terminal shows exactly what has been committed.
package cli
