// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// ErrProducerFailure matches every *ProducerFailure.
var ErrProducerFailure = errors.New("producer failed")

// ProducerFailure reports a failed turn. It carries the original question and
// attachments so the caller can restore them for a retry.
type ProducerFailure struct {
	Question    string
	Attachments []model.Attachment
	Err         error
}

func (e *ProducerFailure) Error() string {
	return fmt.Sprintf("producer failed: %v", e.Err)
}

func (e *ProducerFailure) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrProducerFailure.
func (e *ProducerFailure) Is(target error) bool {
	return target == ErrProducerFailure
}
