// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// TitleWords is the number of leading words of the first question used as
// an automatic conversation title.
const TitleWords = 5

// TitleEllipsis marks an automatic title cut from a longer question.
const TitleEllipsis = "..."

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a named, ordered sequence of messages.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation(title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewID(),
		Title:     title,
		Messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// MESSAGE ACCESS
// =============================================================================

// PendingMessage returns the in-flight model message, or nil.
func (c *Conversation) PendingMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Pending {
			return c.Messages[i]
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Touch updates the modification time.
func (c *Conversation) Touch() {
	c.UpdatedAt = time.Now()
}

// =============================================================================
// TITLES
// =============================================================================

// TitleFromQuestion derives an automatic title from the first question: the
// first TitleWords whitespace-separated tokens joined by single spaces,
// suffixed with TitleEllipsis when anything was cut.
func TitleFromQuestion(question string) string {
	words := strings.Fields(question)
	if len(words) <= TitleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:TitleWords], " ") + TitleEllipsis
}
