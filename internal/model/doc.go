// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - State: every conversation plus the active conversation id
//   - Conversation: a titled, append-ordered list of messages
//   - Message: one user question or model answer, with grounding sources
//   - Attachment: a binary payload sent with a question (never persisted)
//   - ModelInfo: registry entry for a Gemini or local model
//
// The JSON field names match the snapshot written by the browser version of
// the assistant ("chats", "currentChatId", "isLoading"), so existing exports
// load unchanged.
//
// # Usage
//
//	conv := model.NewConversation("Нов чат")
//	conv.Messages = append(conv.Messages,
//	    model.NewUserMessage("Why does door F-28 fail?"),
//	    model.NewPendingModelMessage())
package model
