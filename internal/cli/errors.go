// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/config"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/export"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/ollama"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/share"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
)

// FailurePrefix introduces a failed answer on screen.
const FailurePrefix = "Възникна грешка: "

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a bad argument or flag value.
type UsageError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

func usageError(field, value, reason, example string) error {
	return &UsageError{Field: field, Value: value, Reason: reason, Example: example}
}

// reported marks an error already shown to the user; it only sets the exit
// code.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// =============================================================================
// DISPLAY
// =============================================================================

// failureText is the message shown after a failed answer. Producers put
// their user-facing text in the cause.
func failureText(err error) string {
	var pf *stream.ProducerFailure
	if errors.As(err, &pf) && pf.Err != nil {
		return FailurePrefix + pf.Err.Error()
	}
	return FailurePrefix + err.Error()
}

// displayError prints err in the shared error style.
func displayError(w io.Writer, err error) {
	if err == nil || errors.As(err, new(reported)) {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErrs config.ValidateErrors
	switch {
	case errors.As(err, &usage),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, share.ErrInvalidShareToken):
		return ExitUsageError
	case errors.As(err, &cfgErrs), errors.Is(err, config.ErrMissingAPIKey):
		return ExitConfigError
	case errors.Is(err, conversation.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, ollama.ErrNotRunning),
		errors.Is(err, ollama.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, stream.ErrProducerFailure):
		return ExitNetworkError
	}
	return ExitGeneralError
}
