// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"google.golang.org/genai"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// sourceCollector accumulates unique web grounding sources across the
// responses of one answer, in first-seen order.
type sourceCollector struct {
	seen    map[string]bool
	sources []model.Source
}

func newSourceCollector() *sourceCollector {
	return &sourceCollector{seen: make(map[string]bool), sources: []model.Source{}}
}

func (c *sourceCollector) add(resp *genai.GenerateContentResponse) {
	if resp == nil || len(resp.Candidates) == 0 {
		return
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return
	}
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		uri := chunk.Web.URI
		if c.seen[uri] {
			continue
		}
		c.seen[uri] = true
		title := chunk.Web.Title
		if title == "" {
			title = uri
		}
		c.sources = append(c.sources, model.Source{URI: uri, Title: title})
	}
}

func (c *sourceCollector) result() []model.Source {
	return c.sources
}
