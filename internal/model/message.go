// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleModel:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is a cited web reference backing part of a model answer.
type Source struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}

// DedupeSources returns sources unique by URI, keeping the first occurrence
// of each URI in its original position. Entries with an empty URI carry no
// identity and are all kept.
func DedupeSources(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if s.URI == "" {
			out = append(out, s)
			continue
		}
		if _, ok := seen[s.URI]; ok {
			continue
		}
		seen[s.URI] = struct{}{}
		out = append(out, s)
	}
	return out
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn half in a conversation.
//
// A model message is created Pending with empty content, grows through
// AppendFragment and receives its sources once, at finalization.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	Pending   bool      `json:"isLoading,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewPendingModelMessage creates the placeholder model message of a turn.
func NewPendingModelMessage() *Message {
	msg := NewMessage(RoleModel, "")
	msg.Sources = []Source{}
	msg.Pending = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendFragment appends streamed text to a pending message.
func (m *Message) AppendFragment(text string) {
	if m.Pending {
		m.Content += text
	}
}

// Finalize closes a pending message with its deduplicated sources.
func (m *Message) Finalize(sources []Source) {
	if !m.Pending {
		return
	}
	m.Sources = DedupeSources(sources)
	m.Pending = false
}

// AwaitingFirstFragment reports whether the message is pending and has
// received no text yet.
func (m *Message) AwaitingFirstFragment() bool {
	return m.Pending && m.Content == ""
}

// Preview returns the first line of the content, trimmed.
func (m *Message) Preview() string {
	line, _, _ := strings.Cut(strings.TrimSpace(m.Content), "\n")
	return line
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}
