// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini answers elevator questions with Google Gemini, grounded
// with Google Search. Attachments are sent inline ahead of the prompt.
package gemini
