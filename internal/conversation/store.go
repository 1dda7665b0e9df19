// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the application state and every mutation on it.
package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// DefaultTitle is the placeholder title of a new conversation.
const DefaultTitle = "Нов чат"

// Saver receives the state after every committed mutation.
// storage.Persistence implements it.
type Saver interface {
	Save(state *model.State)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single writer of the application state. All operations are
// serialized by one mutex and return a deep copy of the resulting state.
//
// Every mutation that changes the state bumps State.Version, hands the new
// state to the Saver before returning, and publishes an Event.
type Store struct {
	mu    sync.Mutex
	state *model.State

	// titles remembers the title a conversation had before BeginTurn
	// derived one, so FailTurn can restore it.
	titles map[string]string

	defaultTitle string
	saver        Saver

	// pubMu is taken before mu is released so events leave in commit order.
	pubMu     sync.Mutex
	publisher message.Publisher
	topic     string

	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSaver sets the persistence hook.
func WithSaver(saver Saver) Option {
	return func(s *Store) {
		s.saver = saver
	}
}

// WithDefaultTitle sets the placeholder title of new conversations.
func WithDefaultTitle(title string) Option {
	return func(s *Store) {
		if strings.TrimSpace(title) != "" {
			s.defaultTitle = title
		}
	}
}

// WithPublisher publishes events to topic on publisher. Subscribers must not
// call back into the store synchronously from their handler.
func WithPublisher(publisher message.Publisher, topic string) Option {
	return func(s *Store) {
		s.publisher = publisher
		if topic == "" {
			topic = DefaultTopic
		}
		s.topic = topic
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store seeded with initial. A nil or inconsistent initial
// state is replaced by one fresh default conversation.
func New(initial *model.State, opts ...Option) *Store {
	s := &Store{
		titles:       make(map[string]string),
		defaultTitle: DefaultTitle,
		topic:        DefaultTopic,
		logger:       log.Logger.With().Str("component", "store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if initial != nil && initial.Consistent() {
		s.state = initial.Clone()
	} else {
		conv := model.NewConversation(s.defaultTitle)
		s.state = &model.State{Conversations: []*model.Conversation{conv}, ActiveID: conv.ID}
	}
	return s
}

// =============================================================================
// READ SIDE
// =============================================================================

// State returns a copy of the current state.
func (s *Store) State() *model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Active returns a copy of the active conversation.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Active().Clone()
}

// Conversation returns a copy of the conversation with the given id.
func (s *Store) Conversation(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, _ := s.state.Find(id)
	if conv == nil {
		return nil, notFound("get", id)
	}
	return conv.Clone(), nil
}

// Persist hands the current state to the Saver without changing it. Used
// once after bootstrap.
func (s *Store) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saver != nil {
		s.saver.Save(s.state)
	}
}

// =============================================================================
// CONVERSATION LIST MUTATIONS
// =============================================================================

// CreateConversation inserts a new empty conversation at the front and
// makes it active.
func (s *Store) CreateConversation() *model.State {
	state, _ := s.mutate(func(st *model.State) ([]Event, error) {
		return []Event{s.create(st)}, nil
	})
	return state
}

func (s *Store) create(st *model.State) Event {
	conv := model.NewConversation(s.defaultTitle)
	st.Conversations = append([]*model.Conversation{conv}, st.Conversations...)
	st.ActiveID = conv.ID
	return Event{Type: EventCreated, ConversationID: conv.ID, Text: conv.Title}
}

// SelectConversation makes id the active conversation.
func (s *Store) SelectConversation(id string) (*model.State, error) {
	return s.mutate(func(st *model.State) ([]Event, error) {
		if conv, _ := st.Find(id); conv == nil {
			return nil, notFound("select", id)
		}
		if st.ActiveID == id {
			return nil, nil
		}
		st.ActiveID = id
		return []Event{{Type: EventSelected, ConversationID: id}}, nil
	})
}

// DeleteConversation removes id. Deleting an unknown id does nothing. When
// the active conversation is deleted the oldest remaining one becomes
// active, or a fresh conversation is created if none remain.
func (s *Store) DeleteConversation(id string) *model.State {
	state, _ := s.mutate(func(st *model.State) ([]Event, error) {
		_, idx := st.Find(id)
		if idx < 0 {
			return nil, nil
		}
		st.Conversations = append(st.Conversations[:idx], st.Conversations[idx+1:]...)
		delete(s.titles, id)

		events := []Event{{Type: EventDeleted, ConversationID: id}}
		if st.ActiveID != id {
			return events, nil
		}
		if n := len(st.Conversations); n > 0 {
			st.ActiveID = st.Conversations[n-1].ID
			return append(events, Event{Type: EventSelected, ConversationID: st.ActiveID}), nil
		}
		return append(events, s.create(st)), nil
	})
	return state
}

// RenameConversation sets a trimmed title; an empty title falls back to
// the placeholder.
func (s *Store) RenameConversation(id, title string) (*model.State, error) {
	return s.mutate(func(st *model.State) ([]Event, error) {
		conv, _ := st.Find(id)
		if conv == nil {
			return nil, notFound("rename", id)
		}
		title = strings.TrimSpace(title)
		if title == "" {
			title = s.defaultTitle
		}
		delete(s.titles, id)
		if conv.Title == title {
			return nil, nil
		}
		conv.Title = title
		conv.Touch()
		return []Event{{Type: EventRenamed, ConversationID: id, Text: title}}, nil
	})
}

// =============================================================================
// TURN MUTATIONS
// =============================================================================

// BeginTurn appends the user message and a pending model message. The first
// turn of a conversation still carrying the placeholder title also derives
// a title from userContent.
func (s *Store) BeginTurn(convID, userContent string) (*model.State, error) {
	return s.mutate(func(st *model.State) ([]Event, error) {
		conv, _ := st.Find(convID)
		if conv == nil {
			return nil, notFound("begin turn", convID)
		}
		if conv.PendingMessage() != nil {
			return nil, &Error{Op: "begin turn", ID: convID, Err: ErrTurnInFlight}
		}

		if conv.IsEmpty() && conv.Title == s.defaultTitle {
			if title := model.TitleFromQuestion(userContent); title != "" {
				s.titles[convID] = conv.Title
				conv.Title = title
			}
		}

		reply := model.NewPendingModelMessage()
		conv.Messages = append(conv.Messages, model.NewUserMessage(userContent), reply)
		conv.Touch()
		return []Event{{Type: EventTurnBegun, ConversationID: convID, MessageID: reply.ID, Text: userContent}}, nil
	})
}

// AppendFragment appends text to the pending model message. It does nothing
// when no message is pending.
func (s *Store) AppendFragment(convID, text string) (*model.State, error) {
	return s.mutate(func(st *model.State) ([]Event, error) {
		conv, _ := st.Find(convID)
		if conv == nil {
			return nil, notFound("append fragment", convID)
		}
		pending := conv.PendingMessage()
		if pending == nil || text == "" {
			return nil, nil
		}
		pending.AppendFragment(text)
		conv.UpdatedAt = time.Now()
		return []Event{{Type: EventFragment, ConversationID: convID, MessageID: pending.ID, Text: text}}, nil
	})
}

// FinalizeTurn sets the deduplicated sources on the pending model message
// and clears its pending flag.
func (s *Store) FinalizeTurn(convID string, sources []model.Source) (*model.State, error) {
	return s.mutate(func(st *model.State) ([]Event, error) {
		conv, _ := st.Find(convID)
		if conv == nil {
			return nil, notFound("finalize turn", convID)
		}
		pending := conv.PendingMessage()
		if pending == nil {
			return nil, nil
		}
		pending.Finalize(sources)
		conv.Touch()
		delete(s.titles, convID)
		return []Event{{Type: EventFinalized, ConversationID: convID, MessageID: pending.ID, Sources: pending.Sources}}, nil
	})
}

// FailTurn removes the trailing {user, model} pair of the in-flight turn and
// restores a title derived by its BeginTurn.
func (s *Store) FailTurn(convID string) (*model.State, error) {
	return s.mutate(func(st *model.State) ([]Event, error) {
		conv, _ := st.Find(convID)
		if conv == nil {
			return nil, notFound("fail turn", convID)
		}
		n := len(conv.Messages)
		if n == 0 || !conv.Messages[n-1].Pending {
			return nil, nil
		}
		failed := conv.Messages[n-1]

		cut := n - 1
		if n >= 2 && conv.Messages[n-2].Role == model.RoleUser {
			cut = n - 2
		}
		for i := cut; i < n; i++ {
			conv.Messages[i] = nil
		}
		conv.Messages = conv.Messages[:cut]

		if prev, ok := s.titles[convID]; ok {
			conv.Title = prev
			delete(s.titles, convID)
		}
		conv.Touch()
		return []Event{{Type: EventFailed, ConversationID: convID, MessageID: failed.ID}}, nil
	})
}

// =============================================================================
// COMMIT
// =============================================================================

// mutate runs fn under the lock. fn returns the events of the change, or
// none when the state is unchanged. A changed state is versioned, saved and
// published.
func (s *Store) mutate(fn func(st *model.State) ([]Event, error)) (*model.State, error) {
	s.mu.Lock()

	events, err := fn(s.state)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(events) == 0 {
		snapshot := s.state.Clone()
		s.mu.Unlock()
		return snapshot, nil
	}

	s.state.Version++
	if s.saver != nil {
		s.saver.Save(s.state)
	}
	snapshot := s.state.Clone()

	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	for _, e := range events {
		e.Version = snapshot.Version
		s.publish(e)
	}
	return snapshot, nil
}

func (s *Store) publish(e Event) {
	if s.publisher == nil {
		return
	}
	msg, err := e.ToMessage()
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(e.Type)).Msg("failed to encode event")
		return
	}
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.logger.Warn().Err(err).Str("event", string(e.Type)).Str("topic", s.topic).Msg("failed to publish event")
	}
}
