// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package share encodes a single conversation into a URL-safe token and
// decodes inbound tokens back into fresh conversations.
package share

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// ErrInvalidShareToken is returned for tokens that are not valid base64,
// not valid JSON, or lack a title string or a messages list.
var ErrInvalidShareToken = errors.New("invalid share token")

// ErrEmptyTitle is returned by Encode for an untitled conversation, which
// no share token can carry.
var ErrEmptyTitle = errors.New("share: conversation has no title")

// DefaultImportedPrefix marks the title of an imported conversation.
const DefaultImportedPrefix = "Споделено: "

// =============================================================================
// WIRE FORMAT
// =============================================================================

// payload is the shared representation: title and messages only. Message
// ids are not carried; they are regenerated on import.
type payload struct {
	Title    string           `json:"title"`
	Messages []payloadMessage `json:"messages"`
}

type payloadMessage struct {
	Role    model.Role     `json:"role"`
	Content string         `json:"content"`
	Sources []model.Source `json:"sources,omitempty"`
}

// =============================================================================
// CODEC
// =============================================================================

// Codec converts conversations to and from share tokens.
type Codec struct {
	// ImportedPrefix is prepended to the title of decoded conversations.
	ImportedPrefix string
}

// NewCodec returns a codec using prefix for imported titles.
func NewCodec(prefix string) *Codec {
	return &Codec{ImportedPrefix: prefix}
}

// Encode produces the URL-safe token for conv. Every message is carried in
// order; a pending answer travels with the text it has so far.
func (c *Codec) Encode(conv *model.Conversation) (string, error) {
	if conv == nil {
		return "", errors.New("share: nil conversation")
	}
	if conv.Title == "" {
		return "", ErrEmptyTitle
	}

	p := payload{Title: conv.Title, Messages: make([]payloadMessage, 0, len(conv.Messages))}
	for _, msg := range conv.Messages {
		p.Messages = append(p.Messages, payloadMessage{
			Role:    msg.Role,
			Content: msg.Content,
			Sources: msg.Sources,
		})
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("share: encode: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses token into a new conversation with a fresh id, fresh
// message ids and an imported title. Tokens in the standard base64 alphabet
// (with or without padding) are accepted as well as URL-safe ones.
func (c *Codec) Decode(token string) (*model.Conversation, error) {
	data, err := decodeBase64(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidShareToken)
	}
	if err := validatePayload(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}

	conv := model.NewConversation(c.ImportedPrefix + p.Title)
	now := time.Now()
	for _, m := range p.Messages {
		msg := &model.Message{
			ID:        model.NewID(),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: now,
		}
		if len(m.Sources) > 0 {
			msg.Sources = model.DedupeSources(m.Sources)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}

// decodeBase64 accepts both alphabets, padded or raw.
func decodeBase64(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("empty token")
	}
	trimmed := strings.TrimRight(token, "=")

	if data, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	return data, nil
}
