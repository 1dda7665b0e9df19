// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// DefaultKey is the slot name of the conversation snapshot.
const DefaultKey = "chatState"

// ErrPersistence marks a contained persistence failure. It is logged, never
// returned to callers of Save, Load or Clear.
var ErrPersistence = errors.New("persistence failure")

// =============================================================================
// PERSISTENCE ADAPTER
// =============================================================================

// Persistence reads and writes the single application snapshot
// {conversations, active id} through a KV slot. All failures are contained:
// a broken durable copy never affects in-memory state.
type Persistence struct {
	kv     KV
	key    string
	logger zerolog.Logger
}

// Option configures a Persistence.
type Option func(*Persistence)

// WithLogger sets the logger used for contained failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Persistence) {
		p.logger = logger
	}
}

// NewPersistence creates an adapter over kv using key as the slot name.
// An empty key selects DefaultKey.
func NewPersistence(kv KV, key string, opts ...Option) *Persistence {
	if key == "" {
		key = DefaultKey
	}
	p := &Persistence{
		kv:     kv,
		key:    key,
		logger: log.Logger.With().Str("component", "persistence").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the slot name.
func (p *Persistence) Key() string {
	return p.key
}

// Save writes the snapshot. A state without conversations clears the slot.
func (p *Persistence) Save(state *model.State) {
	if state == nil || state.IsEmpty() {
		p.Clear()
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		p.logger.Error().Err(fmt.Errorf("%w: encode: %v", ErrPersistence, err)).Msg("failed to save conversations")
		return
	}
	if err := p.kv.Set(p.key, data); err != nil {
		p.logger.Error().Err(fmt.Errorf("%w: %v", ErrPersistence, err)).Str("slot", p.key).Msg("failed to save conversations")
		return
	}
	p.logger.Debug().Str("slot", p.key).Int("bytes", len(data)).Uint64("version", state.Version).Msg("snapshot saved")
}

// Load reads the snapshot. It returns false when the slot is absent or
// unreadable; content that does not parse into a consistent state is also
// erased from the slot.
func (p *Persistence) Load() (*model.State, bool) {
	state, _, ok := p.Restore()
	return state, ok
}

// Restore is Load that also reports whether settling changed the state, so
// that it no longer matches the slot.
func (p *Persistence) Restore() (state *model.State, settled bool, ok bool) {
	data, err := p.kv.Get(p.key)
	if errors.Is(err, ErrSlotEmpty) {
		return nil, false, false
	}
	if err != nil {
		p.logger.Error().Err(fmt.Errorf("%w: %v", ErrPersistence, err)).Str("slot", p.key).Msg("failed to read conversations")
		return nil, false, false
	}

	state, settled, err = decodeSnapshot(data)
	if err != nil {
		p.logger.Warn().Err(fmt.Errorf("%w: %v", ErrPersistence, err)).Str("slot", p.key).Msg("discarding stored conversations")
		p.Clear()
		return nil, false, false
	}
	return state, settled, true
}

// Clear removes the slot.
func (p *Persistence) Clear() {
	if err := p.kv.Delete(p.key); err != nil {
		p.logger.Error().Err(fmt.Errorf("%w: %v", ErrPersistence, err)).Str("slot", p.key).Msg("failed to clear conversations")
	}
}

// decodeSnapshot parses and validates raw snapshot data.
func decodeSnapshot(data []byte) (*model.State, bool, error) {
	if !json.Valid(data) {
		return nil, false, errors.New("snapshot is not valid JSON")
	}
	if err := validateSnapshot(data); err != nil {
		return nil, false, err
	}

	var state model.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if !state.Consistent() {
		return nil, false, fmt.Errorf("active conversation %q is not in the snapshot", state.ActiveID)
	}

	return &state, settle(&state), nil
}

// settle resolves turns left pending by a previous process and fills
// missing ids. A pending model message with no text is rolled back with its
// user message; one with text is kept as a finished answer. It reports
// whether anything was changed.
func settle(state *model.State) bool {
	settled := false
	for _, conv := range state.Conversations {
		if conv.Messages == nil {
			conv.Messages = make([]*model.Message, 0)
		}
		kept := conv.Messages[:0]
		for i, msg := range conv.Messages {
			if msg.ID == "" {
				msg.ID = model.NewID()
				settled = true
			}
			if !msg.Pending {
				kept = append(kept, msg)
				continue
			}
			settled = true
			if msg.Content == "" && i == len(conv.Messages)-1 {
				if n := len(kept); n > 0 && kept[n-1].Role == model.RoleUser {
					kept = kept[:n-1]
				}
				continue
			}
			msg.Finalize(msg.Sources)
			kept = append(kept, msg)
		}
		conv.Messages = kept
	}
	return settled
}
