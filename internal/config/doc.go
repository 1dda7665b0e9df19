// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// elevatorapp.
//
// # Key Types
//
//   - Config: main configuration structure
//   - StorageConfig: snapshot backend (file, sqlite, memory)
//   - ProducerConfig: Gemini or local Ollama answer generation
//   - ChatConfig: placeholder titles, import prefix, share link base
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.RequireAPIKey(); err != nil {
//	    return err
//	}
//
// The configuration value is passed explicitly to the components that need
// it; there is no package-level instance.
package config
