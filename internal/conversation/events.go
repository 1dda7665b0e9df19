// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// DefaultTopic is the watermill topic store events are published on.
const DefaultTopic = "conversation.events"

// EventType names a committed store mutation.
type EventType string

const (
	EventCreated   EventType = "conversation.created"
	EventSelected  EventType = "conversation.selected"
	EventDeleted   EventType = "conversation.deleted"
	EventRenamed   EventType = "conversation.renamed"
	EventTurnBegun EventType = "turn.begun"
	EventFragment  EventType = "turn.fragment"
	EventFinalized EventType = "turn.finalized"
	EventFailed    EventType = "turn.failed"
)

// Event describes one committed mutation.
type Event struct {
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId,omitempty"`
	Text           string         `json:"text,omitempty"` // fragment, title or question
	Sources        []model.Source `json:"sources,omitempty"`
	Version        uint64         `json:"version"`
}

// ToMessage encodes the event as a watermill message.
func (e Event) ToMessage() (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(e.Type))
	msg.Metadata.Set("conversation_id", e.ConversationID)
	return msg, nil
}

// DecodeEvent parses a message produced by ToMessage.
func DecodeEvent(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event %s: %w", msg.UUID, err)
	}
	return e, nil
}
