// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice captures dictated questions.
package voice

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AppendTranscript appends transcript to the question draft, separated by
// one space when the trimmed draft is non-empty.
func AppendTranscript(question, transcript string) string {
	transcript = norm.NFC.String(strings.TrimSpace(transcript))
	question = strings.TrimSpace(question)
	if transcript == "" {
		return question
	}
	if question == "" {
		return transcript
	}
	return question + " " + transcript
}
