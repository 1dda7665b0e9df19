// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names for OpenKV.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// SQLiteFile is the database file name used by the sqlite backend.
const SQLiteFile = "elevatorapp.db"

// OpenKV opens the configured slot backend rooted at dir. The returned close
// function is never nil.
func OpenKV(backend, dir string) (KV, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case BackendFile, "":
		kv, err := NewFileKV(dir)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil
	case BackendSQLite:
		kv, err := OpenSQLiteKV(filepath.Join(dir, SQLiteFile))
		if err != nil {
			return nil, noop, err
		}
		return kv, kv.Close, nil
	case BackendMemory:
		return NewMemoryKV(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", backend)
	}
}
