// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable key-value slots and the snapshot
// persistence adapter built on them.
//
// # Slots
//
//   - FileKV: one JSON file per key, written atomically (default)
//   - SQLiteKV: rows of a "slots" table in a pure Go SQLite database
//   - MemoryKV: process-local, for ephemeral sessions and tests
//
// # Persistence
//
// Persistence stores the whole application state under one key
// ("chatState"). Save and Clear never fail from the caller's point of view;
// Load treats unreadable, malformed or inconsistent content as absent and
// erases it.
//
//	kv, closeKV, err := storage.OpenKV("file", dir)
//	if err != nil {
//	    return err
//	}
//	defer closeKV()
//
//	p := storage.NewPersistence(kv, storage.DefaultKey)
//	if state, ok := p.Load(); ok {
//	    // resume
//	}
package storage
