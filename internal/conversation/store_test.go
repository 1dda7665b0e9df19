// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

type recordingSaver struct {
	mu     sync.Mutex
	states []*model.State
}

func (r *recordingSaver) Save(state *model.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state.Clone())
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recordingSaver) last() *model.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func newTestStore(t *testing.T) (*Store, *recordingSaver) {
	t.Helper()
	saver := &recordingSaver{}
	return New(nil, WithSaver(saver)), saver
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestNew_EmptyStateGetsDefaultConversation(t *testing.T) {
	s := New(nil)
	state := s.State()

	require.Len(t, state.Conversations, 1)
	assert.Equal(t, DefaultTitle, state.Conversations[0].Title)
	assert.Equal(t, state.Conversations[0].ID, state.ActiveID)
	assert.Empty(t, state.Conversations[0].Messages)
}

func TestNew_InconsistentStateReplaced(t *testing.T) {
	conv := model.NewConversation("old")
	s := New(&model.State{Conversations: []*model.Conversation{conv}, ActiveID: "gone"})

	state := s.State()
	require.Len(t, state.Conversations, 1)
	assert.NotEqual(t, conv.ID, state.ActiveID)
}

func TestNew_DoesNotPersist(t *testing.T) {
	s, saver := newTestStore(t)
	assert.Equal(t, 0, saver.count())

	s.Persist()
	assert.Equal(t, 1, saver.count())
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

func TestCreateConversation_PrependsAndActivates(t *testing.T) {
	s, saver := newTestStore(t)
	first := s.State().ActiveID

	state := s.CreateConversation()

	require.Len(t, state.Conversations, 2)
	assert.Equal(t, state.Conversations[0].ID, state.ActiveID)
	assert.Equal(t, first, state.Conversations[1].ID)
	assert.Equal(t, uint64(1), state.Version)
	assert.Equal(t, 1, saver.count())
}

func TestSelectConversation(t *testing.T) {
	s, saver := newTestStore(t)
	first := s.State().ActiveID
	s.CreateConversation()

	state, err := s.SelectConversation(first)
	require.NoError(t, err)
	assert.Equal(t, first, state.ActiveID)
	assert.Equal(t, 2, saver.count())

	// Selecting the active conversation changes nothing.
	state, err = s.SelectConversation(first)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), state.Version)
	assert.Equal(t, 2, saver.count())

	_, err = s.SelectConversation("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteConversation_OnlyOneLeavesFreshDefault(t *testing.T) {
	s, _ := newTestStore(t)
	only := s.State().ActiveID

	state := s.DeleteConversation(only)

	require.Len(t, state.Conversations, 1)
	assert.NotEqual(t, only, state.ActiveID)
	assert.Equal(t, DefaultTitle, state.Conversations[0].Title)
	assert.Empty(t, state.Conversations[0].Messages)
}

func TestDeleteConversation_ActiveFallsBackToOldest(t *testing.T) {
	s, _ := newTestStore(t)
	oldest := s.State().ActiveID
	middle := s.CreateConversation().ActiveID
	newest := s.CreateConversation().ActiveID

	state := s.DeleteConversation(newest)

	require.Len(t, state.Conversations, 2)
	assert.Equal(t, oldest, state.ActiveID)
	assert.Equal(t, middle, state.Conversations[0].ID)
}

func TestDeleteConversation_InactiveKeepsActive(t *testing.T) {
	s, _ := newTestStore(t)
	oldest := s.State().ActiveID
	active := s.CreateConversation().ActiveID

	state := s.DeleteConversation(oldest)

	require.Len(t, state.Conversations, 1)
	assert.Equal(t, active, state.ActiveID)
}

func TestDeleteConversation_UnknownIsNoop(t *testing.T) {
	s, saver := newTestStore(t)
	before := s.State()

	after := s.DeleteConversation("missing")

	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.ActiveID, after.ActiveID)
	assert.Len(t, after.Conversations, 1)
	assert.Equal(t, 0, saver.count())
}

func TestRenameConversation(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	state, err := s.RenameConversation(id, "  Door faults  ")
	require.NoError(t, err)
	assert.Equal(t, "Door faults", state.Active().Title)

	state, err = s.RenameConversation(id, "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, state.Active().Title)

	_, err = s.RenameConversation("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// TURNS
// =============================================================================

func TestTurn_FragmentsConcatenate(t *testing.T) {
	s, saver := newTestStore(t)
	id := s.State().ActiveID

	_, err := s.BeginTurn(id, "Why does the car stop short of the floor?")
	require.NoError(t, err)
	for _, frag := range []string{"Hello", " world", "!"} {
		_, err = s.AppendFragment(id, frag)
		require.NoError(t, err)
	}
	state, err := s.FinalizeTurn(id, nil)
	require.NoError(t, err)

	conv := state.Active()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "Hello world!", conv.Messages[1].Content)
	assert.False(t, conv.Messages[1].Pending)
	assert.NotNil(t, conv.Messages[1].Sources)
	assert.Equal(t, "Why does the car stop...", conv.Title)

	// begin + 3 fragments + finalize, each saved.
	assert.Equal(t, 5, saver.count())
	assert.Equal(t, "Hello world!", saver.last().Active().Messages[1].Content)
}

func TestTurn_PendingVisibleAfterBegin(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	state, err := s.BeginTurn(id, "q")
	require.NoError(t, err)

	pending := state.Active().PendingMessage()
	require.NotNil(t, pending)
	assert.Equal(t, "", pending.Content)
	assert.Equal(t, model.RoleModel, pending.Role)
}

func TestTurn_SourcesDeduplicated(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	_, err := s.BeginTurn(id, "q")
	require.NoError(t, err)
	state, err := s.FinalizeTurn(id, []model.Source{
		{URI: "A", Title: "x"},
		{URI: "B", Title: "y"},
		{URI: "A", Title: "z"},
	})
	require.NoError(t, err)

	assert.Equal(t,
		[]model.Source{{URI: "A", Title: "x"}, {URI: "B", Title: "y"}},
		state.Active().Messages[1].Sources)
}

func TestTurn_SourcesWithoutURIKept(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	_, err := s.BeginTurn(id, "q")
	require.NoError(t, err)
	state, err := s.FinalizeTurn(id, []model.Source{{URI: "", Title: "x"}, {URI: "A", Title: "y"}})
	require.NoError(t, err)

	assert.Equal(t,
		[]model.Source{{URI: "", Title: "x"}, {URI: "A", Title: "y"}},
		state.Active().Messages[1].Sources)
}

func TestTurn_TitleOnlyDerivedOnFirstTurn(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	_, _ = s.BeginTurn(id, "first question")
	_, _ = s.FinalizeTurn(id, nil)
	state, err := s.BeginTurn(id, "second question is much longer than five words")
	require.NoError(t, err)

	assert.Equal(t, "first question", state.Active().Title)
}

func TestTurn_RenamedConversationKeepsTitle(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID
	_, _ = s.RenameConversation(id, "Hydraulics")

	state, err := s.BeginTurn(id, "pump noise")
	require.NoError(t, err)
	assert.Equal(t, "Hydraulics", state.Active().Title)
}

func TestBeginTurn_RejectsSecondInFlight(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	_, err := s.BeginTurn(id, "q1")
	require.NoError(t, err)

	_, err = s.BeginTurn(id, "q2")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.Len(t, s.Active().Messages, 2)
}

func TestTurnOperations_UnknownConversation(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.BeginTurn("missing", "q")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AppendFragment("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FinalizeTurn("missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FailTurn("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendFragment_NoPendingIsNoop(t *testing.T) {
	s, saver := newTestStore(t)
	id := s.State().ActiveID

	state, err := s.AppendFragment(id, "stray")
	require.NoError(t, err)
	assert.Empty(t, state.Active().Messages)
	assert.Equal(t, 0, saver.count())
}

func TestFailTurn_RestoresPriorState(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID
	_, _ = s.BeginTurn(id, "earlier question")
	_, _ = s.AppendFragment(id, "earlier answer")
	before, err := s.FinalizeTurn(id, nil)
	require.NoError(t, err)

	_, err = s.BeginTurn(id, "failing question")
	require.NoError(t, err)
	_, err = s.AppendFragment(id, "partial")
	require.NoError(t, err)
	after, err := s.FailTurn(id)
	require.NoError(t, err)

	assert.Equal(t, before.Active().Title, after.Active().Title)
	require.Len(t, after.Active().Messages, 2)
	for i, msg := range before.Active().Messages {
		assert.Equal(t, msg.ID, after.Active().Messages[i].ID)
		assert.Equal(t, msg.Content, after.Active().Messages[i].Content)
	}
}

func TestFailTurn_RestoresDerivedTitle(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID

	state, err := s.BeginTurn(id, "one two three four five six")
	require.NoError(t, err)
	assert.Equal(t, "one two three four five...", state.Active().Title)

	state, err = s.FailTurn(id)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, state.Active().Title)
	assert.Empty(t, state.Active().Messages)

	// A new turn can start again.
	_, err = s.BeginTurn(id, "retry")
	assert.NoError(t, err)
}

func TestFailTurn_NoPendingIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.State().ActiveID
	_, _ = s.BeginTurn(id, "q")
	_, _ = s.FinalizeTurn(id, nil)

	state, err := s.FailTurn(id)
	require.NoError(t, err)
	assert.Len(t, state.Active().Messages, 2)
}

func TestStore_ReturnedStateIsDetached(t *testing.T) {
	s, _ := newTestStore(t)
	state := s.State()
	state.Conversations[0].Title = "mutated"

	assert.Equal(t, DefaultTitle, s.Active().Title)
}

func TestStore_ConcurrentTurnsOnSeparateConversations(t *testing.T) {
	s, _ := newTestStore(t)
	ids := []string{s.State().ActiveID}
	for i := 0; i < 4; i++ {
		ids = append(ids, s.CreateConversation().ActiveID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = s.BeginTurn(id, "q")
			for i := 0; i < 20; i++ {
				_, _ = s.AppendFragment(id, "x")
			}
			_, _ = s.FinalizeTurn(id, nil)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		conv, err := s.Conversation(id)
		require.NoError(t, err)
		require.Len(t, conv.Messages, 2)
		assert.Len(t, conv.Messages[1].Content, 20)
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func TestStore_PublishesEventsInOrder(t *testing.T) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NopLogger{},
	)
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	events := make(chan Event, 16)
	go func() {
		for msg := range messages {
			e, err := DecodeEvent(msg)
			if err == nil {
				events <- e
			}
			msg.Ack()
		}
	}()

	s := New(nil, WithPublisher(pubSub, ""))
	id := s.State().ActiveID
	_, _ = s.BeginTurn(id, "q")
	_, _ = s.AppendFragment(id, "a")
	_, _ = s.AppendFragment(id, "b")
	_, _ = s.FinalizeTurn(id, []model.Source{{URI: "u", Title: "t"}})

	want := []EventType{EventTurnBegun, EventFragment, EventFragment, EventFinalized}
	var got []Event
	for range want {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	for i, e := range got {
		assert.Equal(t, want[i], e.Type)
		assert.Equal(t, id, e.ConversationID)
		assert.Equal(t, uint64(i+1), e.Version)
	}
	assert.Equal(t, "a", got[1].Text)
	assert.Equal(t, []model.Source{{URI: "u", Title: "t"}}, got[3].Sources)
}
