// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bootstrap decides the initial application state from a share
// link, the persisted snapshot, or a fresh default conversation.
package bootstrap

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// Loader yields the persisted state and whether loading had to settle it.
// storage.Persistence implements it.
type Loader interface {
	Restore() (state *model.State, settled bool, ok bool)
}

// Decoder turns a share token into a conversation. share.Codec implements it.
type Decoder interface {
	Decode(token string) (*model.Conversation, error)
}

// Resolver computes the initial state once at startup.
type Resolver struct {
	Loader       Loader
	Decoder      Decoder
	DefaultTitle string
	Logger       zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(loader Loader, decoder Decoder, defaultTitle string) *Resolver {
	return &Resolver{
		Loader:       loader,
		Decoder:      decoder,
		DefaultTitle: defaultTitle,
		Logger:       log.Logger.With().Str("component", "bootstrap").Logger(),
	}
}

// Resolve returns the initial state. The first rule that succeeds wins:
//
//  1. a decodable share token is imported in front of the stored
//     conversations and activated, and the token is stripped from loc;
//  2. a valid stored state is used verbatim;
//  3. one empty default conversation is created.
//
// changed is false only when the state is exactly what the slot holds.
func (r *Resolver) Resolve(loc Location) (state *model.State, changed bool) {
	if loc == nil {
		loc = NoLocation{}
	}

	stored, settled, ok := r.load()

	if token, found := loc.ShareToken(); found && r.Decoder != nil {
		conv, err := r.Decoder.Decode(token)
		if err == nil {
			if !ok {
				stored = &model.State{}
			}
			stored.Conversations = append([]*model.Conversation{conv}, stored.Conversations...)
			stored.ActiveID = conv.ID
			if err := loc.StripShareToken(); err != nil {
				r.Logger.Warn().Err(err).Msg("failed to strip share token from location")
			}
			r.Logger.Info().Str("conversation", conv.ID).Str("title", conv.Title).Msg("imported shared conversation")
			return stored, true
		}
		r.Logger.Warn().Err(err).Msg("ignoring invalid share link")
	}

	if ok {
		return stored, settled
	}

	conv := model.NewConversation(r.DefaultTitle)
	return &model.State{Conversations: []*model.Conversation{conv}, ActiveID: conv.ID}, true
}

func (r *Resolver) load() (*model.State, bool, bool) {
	if r.Loader == nil {
		return nil, false, false
	}
	state, settled, ok := r.Loader.Restore()
	if !ok || state == nil || !state.Consistent() {
		return nil, false, false
	}
	return state, settled, true
}
