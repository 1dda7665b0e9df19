// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama answers questions with a local model served by Ollama.
//
// The Producer drives langchaingo's Ollama client. Generation runs in a
// background goroutine and hands each streamed chunk to the consumer over
// an unbuffered channel. Local answers are not grounded, so the final unit
// never carries sources.
//
// # Usage
//
//	p, err := ollama.New(ollama.Config{URL: "http://localhost:11434", Model: "llava"})
//	if err := ollama.CheckRunning(ctx, "http://localhost:11434"); ollama.IsNotRunning(err) {
//	    // tell the user to start "ollama serve"
//	}
//	rec := stream.NewReconciler(store, p)
package ollama
