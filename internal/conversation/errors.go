// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a conversation id does not reference an existing
	// conversation. Callers holding stale ids have a bug.
	ErrNotFound = errors.New("conversation not found")

	// ErrTurnInFlight means BeginTurn targeted a conversation that already
	// has a pending model message.
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// Error records the operation and conversation id of a store failure.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches the wrapped sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Err
}

func notFound(op, id string) error {
	return &Error{Op: op, ID: id, Err: ErrNotFound}
}
