// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// =============================================================================
// YAML EXPORTER
// =============================================================================

// YAMLExporter writes a flat transcript document.
type YAMLExporter struct {
	options *Options
}

type yamlTranscript struct {
	Title    string        `yaml:"title"`
	Created  *time.Time    `yaml:"created,omitempty"`
	Exported *time.Time    `yaml:"exported,omitempty"`
	Messages []yamlMessage `yaml:"messages"`
}

type yamlMessage struct {
	Role    string         `yaml:"role"`
	Time    *time.Time     `yaml:"time,omitempty"`
	Content string         `yaml:"content"`
	Sources []model.Source `yaml:"sources,omitempty"`
	Pending bool           `yaml:"pending,omitempty"`
}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

// Export converts a conversation to YAML format.
func (e *YAMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}

	doc := yamlTranscript{Title: conv.Title}
	if e.options.IncludeMetadata {
		if !conv.CreatedAt.IsZero() {
			created := conv.CreatedAt
			doc.Created = &created
		}
		exported := e.options.now()
		doc.Exported = &exported
	}

	for _, m := range visibleMessages(conv, e.options) {
		ym := yamlMessage{
			Role:    m.Role.String(),
			Content: m.Content,
			Sources: m.Sources,
			Pending: m.Pending,
		}
		if e.options.IncludeTimestamps && !m.CreatedAt.IsZero() {
			at := m.CreatedAt
			ym.Time = &at
		}
		doc.Messages = append(doc.Messages, ym)
	}

	return yaml.Marshal(&doc)
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
