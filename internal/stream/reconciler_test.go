// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

var errBackend = errors.New("backend unavailable")

func fixed(units ...Unit) Producer {
	return ProducerFunc(func(ctx context.Context, req Request) (Sequence, error) {
		return FromUnits(units...), nil
	})
}

// =============================================================================
// STREAMING MODE
// =============================================================================

func TestRun_CommitsFragmentsAndSources(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	rec := NewReconciler(store, fixed(
		Unit{Fragment: "Hello"},
		Unit{Fragment: " world"},
		Unit{Fragment: "!", Final: true, Sources: []model.Source{
			{URI: "A", Title: "x"}, {URI: "B", Title: "y"}, {URI: "A", Title: "z"},
		}},
	))

	err := rec.Run(context.Background(), id, Request{Question: "q"})
	require.NoError(t, err)

	conv := store.Active()
	require.Len(t, conv.Messages, 2)
	answer := conv.Messages[1]
	assert.Equal(t, "Hello world!", answer.Content)
	assert.False(t, answer.Pending)
	assert.Equal(t, []model.Source{{URI: "A", Title: "x"}, {URI: "B", Title: "y"}}, answer.Sources)
}

func TestRun_NoFinalUnitFinalizesWithoutSources(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	rec := NewReconciler(store, fixed(Unit{Fragment: "partial"}))

	require.NoError(t, rec.Run(context.Background(), id, Request{Question: "q"}))

	answer := store.Active().Messages[1]
	assert.False(t, answer.Pending)
	require.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
}

func TestRun_PullsOnlyAfterCommit(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	frags := []string{"a", "b", "c"}

	var seen []string
	producer := ProducerFunc(func(ctx context.Context, req Request) (Sequence, error) {
		return FromSeq(func(yield func(Unit, error) bool) {
			for i, f := range frags {
				// Everything yielded so far is already in the store.
				seen = append(seen, store.Active().Messages[1].Content)
				if !yield(Unit{Fragment: f, Final: i == len(frags)-1}, nil) {
					return
				}
			}
		}), nil
	})

	require.NoError(t, NewReconciler(store, producer).Run(context.Background(), id, Request{Question: "q"}))
	assert.Equal(t, []string{"", "a", "ab"}, seen)
}

func TestRun_MidStreamFailureRollsBack(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	before := store.Active()

	producer := ProducerFunc(func(ctx context.Context, req Request) (Sequence, error) {
		return FromSeq(func(yield func(Unit, error) bool) {
			if !yield(Unit{Fragment: "half "}, nil) {
				return
			}
			if !yield(Unit{Fragment: "an ans"}, nil) {
				return
			}
			yield(Unit{}, errBackend)
		}), nil
	})
	attachments := []model.Attachment{{Name: "panel.jpg", MIMEType: "image/jpeg", Data: []byte{1}}}

	err := NewReconciler(store, producer).Run(context.Background(), id, Request{
		Question:    "Why does the door reopen?",
		Attachments: attachments,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProducerFailure)
	assert.ErrorIs(t, err, errBackend)

	var failure *ProducerFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "Why does the door reopen?", failure.Question)
	assert.Equal(t, attachments, failure.Attachments)

	after := store.Active()
	assert.Empty(t, after.Messages)
	assert.Equal(t, before.Title, after.Title)
}

func TestRun_OpenFailureRollsBack(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	producer := ProducerFunc(func(ctx context.Context, req Request) (Sequence, error) {
		return nil, errBackend
	})

	err := NewReconciler(store, producer).Run(context.Background(), id, Request{Question: "q"})

	assert.ErrorIs(t, err, ErrProducerFailure)
	assert.Empty(t, store.Active().Messages)
}

func TestRun_CancelledContextRollsBack(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	ctx, cancel := context.WithCancel(context.Background())

	producer := ProducerFunc(func(ctx context.Context, req Request) (Sequence, error) {
		return FromSeq(func(yield func(Unit, error) bool) {
			yield(Unit{Fragment: "first"}, nil)
			cancel()
			yield(Unit{Fragment: "never"}, nil)
		}), nil
	})

	err := NewReconciler(store, producer).Run(ctx, id, Request{Question: "q"})

	assert.ErrorIs(t, err, ErrProducerFailure)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Active().Messages)
}

func TestRun_BeginTurnErrorsPassThrough(t *testing.T) {
	store := conversation.New(nil)
	rec := NewReconciler(store, fixed())

	err := rec.Run(context.Background(), "missing", Request{Question: "q"})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.NotErrorIs(t, err, ErrProducerFailure)

	id := store.State().ActiveID
	_, err = store.BeginTurn(id, "first")
	require.NoError(t, err)
	err = rec.Run(context.Background(), id, Request{Question: "second"})
	assert.ErrorIs(t, err, conversation.ErrTurnInFlight)
}

func TestRun_ConversationDeletedMidStream(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	other := store.CreateConversation().ActiveID

	producer := ProducerFunc(func(ctx context.Context, req Request) (Sequence, error) {
		return FromSeq(func(yield func(Unit, error) bool) {
			if !yield(Unit{Fragment: "one"}, nil) {
				return
			}
			store.DeleteConversation(id)
			yield(Unit{Fragment: "two", Final: true}, nil)
		}), nil
	})

	err := NewReconciler(store, producer).Run(context.Background(), id, Request{Question: "q"})
	require.NoError(t, err)

	state := store.State()
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, other, state.Conversations[0].ID)
	assert.Empty(t, state.Conversations[0].Messages)
}

func TestRun_IndependentConversations(t *testing.T) {
	store := conversation.New(nil)
	a := store.State().ActiveID
	b := store.CreateConversation().ActiveID

	done := make(chan error, 2)
	for _, tc := range []struct{ id, text string }{{a, "alpha"}, {b, "beta"}} {
		go func(id, text string) {
			var units []Unit
			for _, r := range text {
				units = append(units, Unit{Fragment: string(r)})
			}
			done <- NewReconciler(store, fixed(units...)).Run(context.Background(), id, Request{Question: text})
		}(tc.id, tc.text)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	ca, err := store.Conversation(a)
	require.NoError(t, err)
	cb, err := store.Conversation(b)
	require.NoError(t, err)
	assert.Equal(t, "alpha", ca.Messages[1].Content)
	assert.Equal(t, "beta", cb.Messages[1].Content)
}

// =============================================================================
// SINGLE-SHOT MODE
// =============================================================================

func TestRunSingle_CommitsWholeAnswer(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	single := SingleShotFunc(func(ctx context.Context, req Request) (Answer, error) {
		return Answer{Text: "Check the door lock contacts.", Sources: []model.Source{{URI: "u", Title: "t"}}}, nil
	})

	rec := NewReconciler(store, fixed(), WithSingleShot(single))
	require.NoError(t, rec.RunSingle(context.Background(), id, Request{Question: "q"}))

	answer := store.Active().Messages[1]
	assert.Equal(t, "Check the door lock contacts.", answer.Content)
	assert.Equal(t, []model.Source{{URI: "u", Title: "t"}}, answer.Sources)
	assert.False(t, answer.Pending)
}

func TestRunSingle_FailureRemovesBothMessages(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	single := SingleShotFunc(func(ctx context.Context, req Request) (Answer, error) {
		return Answer{}, errBackend
	})

	err := NewReconciler(store, fixed(), WithSingleShot(single)).RunSingle(context.Background(), id, Request{Question: "q"})

	assert.ErrorIs(t, err, ErrProducerFailure)
	assert.Empty(t, store.Active().Messages)
}

func TestRunSingle_FallsBackToCollect(t *testing.T) {
	store := conversation.New(nil)
	id := store.State().ActiveID
	rec := NewReconciler(store, fixed(
		Unit{Fragment: "a"},
		Unit{Fragment: "b", Final: true, Sources: []model.Source{{URI: "s"}}},
	))

	require.NoError(t, rec.RunSingle(context.Background(), id, Request{Question: "q"}))
	assert.Equal(t, "ab", store.Active().Messages[1].Content)
}

// =============================================================================
// ADAPTERS
// =============================================================================

func TestFromSeq_CloseStopsIterator(t *testing.T) {
	stopped := false
	var seq iter.Seq2[Unit, error] = func(yield func(Unit, error) bool) {
		defer func() { stopped = true }()
		for _, w := range strings.Fields("a b c d") {
			if !yield(Unit{Fragment: w}, nil) {
				return
			}
		}
	}

	s := FromSeq(seq)
	u, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", u.Fragment)
	require.NoError(t, s.Close())
	assert.True(t, stopped)
}
