// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// Backend names accepted by the producer configuration.
const (
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

// ModelInfo describes an answer-generation model known to the assistant.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	Grounding   bool   `json:"grounding"` // answers cite web sources
	Attachments bool   `json:"attachments"`
	Description string `json:"description"`
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the registry of known models keyed by ID.
var Models = map[string]ModelInfo{
	"gemini-2.5-flash": {
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Backend:     BackendGemini,
		Grounding:   true,
		Attachments: true,
		Description: "Default; fast answers with Google Search grounding",
	},
	"gemini-2.5-pro": {
		ID:          "gemini-2.5-pro",
		Name:        "Gemini 2.5 Pro",
		Backend:     BackendGemini,
		Grounding:   true,
		Attachments: true,
		Description: "Slower, better at reading wiring diagrams and manuals",
	},
	"gemini-2.0-flash": {
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
		Backend:     BackendGemini,
		Grounding:   true,
		Attachments: true,
		Description: "Previous generation flash model",
	},
	"llama3.1": {
		ID:          "llama3.1",
		Name:        "Llama 3.1",
		Backend:     BackendOllama,
		Description: "Local model, text only, no web sources",
	},
	"llava": {
		ID:          "llava",
		Name:        "LLaVA",
		Backend:     BackendOllama,
		Attachments: true,
		Description: "Local vision model for photos of equipment",
	},
	"gemma2": {
		ID:          "gemma2",
		Name:        "Gemma 2",
		Backend:     BackendOllama,
		Description: "Google's lightweight local model",
	},
}

// =============================================================================
// MODEL INFO METHODS
// =============================================================================

// CapabilitiesString returns a comma-separated list of model capabilities.
func (m ModelInfo) CapabilitiesString() string {
	caps := []string{}
	if m.Grounding {
		caps = append(caps, "Web sources")
	}
	if m.Attachments {
		caps = append(caps, "Attachments")
	}
	if m.Backend == BackendOllama {
		caps = append(caps, "Offline")
	}
	if len(caps) == 0 {
		return "Text only"
	}
	return strings.Join(caps, ", ")
}

// GetModelInfo returns information about a model by ID.
func GetModelInfo(id string) (ModelInfo, bool) {
	info, ok := Models[id]
	return info, ok
}

// GetModelsByBackend returns the known models of a backend sorted by ID.
func GetModelsByBackend(backend string) []ModelInfo {
	var result []ModelInfo
	for _, info := range Models {
		if info.Backend == backend {
			result = append(result, info)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
