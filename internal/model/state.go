// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	clone "github.com/huandu/go-clone"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// State is the whole application state: every conversation plus the active
// one. Conversations are kept newest first.
//
// Version is bumped by the owner on every committed mutation and is not
// persisted.
type State struct {
	Conversations []*Conversation `json:"chats"`
	ActiveID      string          `json:"currentChatId"`
	Version       uint64          `json:"-"`
}

// Find returns the conversation with the given id and its index.
func (s *State) Find(id string) (*Conversation, int) {
	for i, c := range s.Conversations {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}

// Active returns the active conversation, or nil.
func (s *State) Active() *Conversation {
	c, _ := s.Find(s.ActiveID)
	return c
}

// IsEmpty reports whether the state holds no conversations.
func (s *State) IsEmpty() bool {
	return len(s.Conversations) == 0
}

// Consistent reports whether the state holds at least one conversation and
// the active id references one of them.
func (s *State) Consistent() bool {
	return !s.IsEmpty() && s.Active() != nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*State)
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	return clone.Clone(c).(*Conversation)
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attachment is a binary payload sent along with a question. Attachments are
// passed through to the producer untouched and never persisted.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// DedupeAttachments merges attachments by name; a later attachment replaces
// an earlier one with the same name in place.
func DedupeAttachments(files []Attachment) []Attachment {
	out := make([]Attachment, 0, len(files))
	index := make(map[string]int, len(files))
	for _, f := range files {
		if i, ok := index[f.Name]; ok {
			out[i] = f
			continue
		}
		index[f.Name] = len(out)
		out = append(out, f)
	}
	return out
}
