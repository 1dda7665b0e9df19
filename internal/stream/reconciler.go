// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// Store is the subset of conversation.Store the reconciler drives.
type Store interface {
	BeginTurn(convID, userContent string) (*model.State, error)
	AppendFragment(convID, text string) (*model.State, error)
	FinalizeTurn(convID string, sources []model.Source) (*model.State, error)
	FailTurn(convID string) (*model.State, error)
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler turns one producer answer into store mutations. It keeps no
// state between turns; concurrent turns on different conversations are safe.
type Reconciler struct {
	store    Store
	producer Producer
	single   SingleShot
	logger   zerolog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSingleShot sets the producer used by RunSingle. Without it RunSingle
// drains the streaming producer.
func WithSingleShot(single SingleShot) Option {
	return func(r *Reconciler) {
		r.single = single
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a reconciler writing to store.
func NewReconciler(store Store, producer Producer, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		producer: producer,
		logger:   log.Logger.With().Str("component", "reconciler").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.single == nil {
		if single, ok := producer.(SingleShot); ok {
			r.single = single
		} else {
			r.single = Collect(producer)
		}
	}
	return r
}

// Run performs one streaming turn on convID.
//
// Errors from BeginTurn are returned unchanged. A producer error or context
// cancellation rolls the turn back and returns a *ProducerFailure. If the
// conversation is deleted while the answer streams, the remaining units are
// discarded and Run returns nil.
func (r *Reconciler) Run(ctx context.Context, convID string, req Request) error {
	if _, err := r.store.BeginTurn(convID, req.Question); err != nil {
		return err
	}

	seq, err := r.producer.Stream(ctx, req)
	if err != nil {
		return r.fail(convID, req, err)
	}
	defer seq.Close()

	var sources []model.Source
	fragments := 0
	for {
		unit, err := seq.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.fail(convID, req, err)
		}

		if unit.Fragment != "" {
			if _, err := r.store.AppendFragment(convID, unit.Fragment); err != nil {
				return r.abandon(convID, err)
			}
			fragments++
		}
		if unit.Final {
			sources = unit.Sources
		}
	}

	if _, err := r.store.FinalizeTurn(convID, sources); err != nil {
		return r.abandon(convID, err)
	}
	r.logger.Debug().
		Str("conversation", convID).
		Int("fragments", fragments).
		Int("sources", len(sources)).
		Msg("turn finalized")
	return nil
}

// RunSingle performs one single-shot turn on convID. The whole answer is
// committed as one fragment; failures roll back like Run.
func (r *Reconciler) RunSingle(ctx context.Context, convID string, req Request) error {
	if _, err := r.store.BeginTurn(convID, req.Question); err != nil {
		return err
	}

	answer, err := r.single.Generate(ctx, req)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return r.fail(convID, req, err)
	}

	if _, err := r.store.AppendFragment(convID, answer.Text); err != nil {
		return r.abandon(convID, err)
	}
	if _, err := r.store.FinalizeTurn(convID, answer.Sources); err != nil {
		return r.abandon(convID, err)
	}
	return nil
}

func (r *Reconciler) fail(convID string, req Request, cause error) error {
	r.logger.Warn().Err(cause).Str("conversation", convID).Msg("producer failed, rolling back turn")
	if _, err := r.store.FailTurn(convID); err != nil && !errors.Is(err, conversation.ErrNotFound) {
		r.logger.Error().Err(err).Str("conversation", convID).Msg("rollback failed")
	}
	return &ProducerFailure{Question: req.Question, Attachments: req.Attachments, Err: cause}
}

// abandon ends a turn whose conversation disappeared mid-answer.
func (r *Reconciler) abandon(convID string, err error) error {
	if errors.Is(err, conversation.ErrNotFound) {
		r.logger.Debug().Str("conversation", convID).Msg("conversation deleted during turn, discarding answer")
		return nil
	}
	return err
}
