// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/voice"
)

// DefaultAttachmentsPrompt is the user message of an attachments-only send.
const DefaultAttachmentsPrompt = "Анализирай прикачените %d файла."

var (
	// ErrEmptyDraft means Send was called with no question and no files.
	ErrEmptyDraft = errors.New("nothing to send")

	// ErrBusy means a turn started by this session is still running.
	ErrBusy = errors.New("an answer is still being generated")
)

// Draft is the question being composed.
type Draft struct {
	Question    string
	Attachments []model.Attachment
}

// IsEmpty reports whether there is nothing to send.
func (d Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Question) == "" && len(d.Attachments) == 0
}

// Runner performs one turn. *stream.Reconciler implements it.
type Runner interface {
	Run(ctx context.Context, convID string, req stream.Request) error
	RunSingle(ctx context.Context, convID string, req stream.Request) error
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager is one user's composing surface over the store: the draft, the
// active conversation and the send action.
type Manager struct {
	mu sync.Mutex

	store  *conversation.Store
	runner Runner

	streaming         bool
	attachmentsPrompt string

	draft   Draft
	sending bool

	// Callbacks
	onFailure func(err error)

	logger zerolog.Logger
}

// Config holds configuration for the session manager.
type Config struct {
	// Streaming selects Run over RunSingle.
	Streaming bool

	// AttachmentsPrompt formats the user message of an attachments-only
	// send; %d is the file count.
	AttachmentsPrompt string
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Streaming:         true,
		AttachmentsPrompt: DefaultAttachmentsPrompt,
	}
}

// NewManager creates a session manager.
func NewManager(store *conversation.Store, runner Runner, cfg Config) *Manager {
	if cfg.AttachmentsPrompt == "" {
		cfg.AttachmentsPrompt = DefaultAttachmentsPrompt
	}
	return &Manager{
		store:             store,
		runner:            runner,
		streaming:         cfg.Streaming,
		attachmentsPrompt: cfg.AttachmentsPrompt,
		logger:            log.Logger.With().Str("component", "session").Logger(),
	}
}

// Store returns the underlying store.
func (m *Manager) Store() *conversation.Store {
	return m.store
}

// =============================================================================
// DRAFT
// =============================================================================

// Draft returns a copy of the draft.
func (m *Manager) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Draft{
		Question:    m.draft.Question,
		Attachments: append([]model.Attachment(nil), m.draft.Attachments...),
	}
}

// SetQuestion replaces the draft question.
func (m *Manager) SetQuestion(q string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.Question = q
}

// AppendTranscript appends dictated text to the draft question.
func (m *Manager) AppendTranscript(transcript string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.Question = voice.AppendTranscript(m.draft.Question, transcript)
	return m.draft.Question
}

// Attach adds files to the draft. A file with the name of an attached one
// replaces it.
func (m *Manager) Attach(files ...model.Attachment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft.Attachments = model.DedupeAttachments(append(m.draft.Attachments, files...))
}

// Detach removes the attachment called name.
func (m *Manager) Detach(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.draft.Attachments {
		if a.Name == name {
			m.draft.Attachments = append(m.draft.Attachments[:i], m.draft.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// ClearDraft empties the question and attachments.
func (m *Manager) ClearDraft() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = Draft{}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation creates and activates a conversation and clears the draft.
func (m *Manager) NewConversation() *model.State {
	m.ClearDraft()
	return m.store.CreateConversation()
}

// Busy reports whether a send is in progress.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending
}

// SetFailureCallback sets the function called when a send fails after the
// draft was restored.
func (m *Manager) SetFailureCallback(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailure = fn
}

// =============================================================================
// SEND
// =============================================================================

// Send submits the draft to the active conversation and blocks until the
// answer is finalized or the turn fails. The draft is cleared up front and
// restored on any error, whether the turn was refused or the producer failed.
func (m *Manager) Send(ctx context.Context) error {
	m.mu.Lock()
	if m.sending {
		m.mu.Unlock()
		return ErrBusy
	}
	draft := m.draft
	if draft.IsEmpty() {
		m.mu.Unlock()
		return ErrEmptyDraft
	}
	content := strings.TrimSpace(draft.Question)
	if content == "" {
		content = fmt.Sprintf(m.attachmentsPrompt, len(draft.Attachments))
	}
	m.draft = Draft{}
	m.sending = true
	streaming := m.streaming
	m.mu.Unlock()

	convID := m.store.State().ActiveID
	req := stream.Request{Question: content, Attachments: draft.Attachments}
	m.logger.Debug().
		Str("conversation", convID).
		Int("attachments", len(req.Attachments)).
		Bool("streaming", streaming).
		Msg("sending question")

	var err error
	if streaming {
		err = m.runner.Run(ctx, convID, req)
	} else {
		err = m.runner.RunSingle(ctx, convID, req)
	}

	m.mu.Lock()
	m.sending = false
	if err != nil {
		m.draft = draft
	}
	onFailure := m.onFailure
	m.mu.Unlock()

	if errors.Is(err, stream.ErrProducerFailure) && onFailure != nil {
		onFailure(err)
	}
	return err
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status summarizes the session for display.
type Status struct {
	ConversationID string
	Title          string
	Messages       int
	Attachments    int
	Sending        bool
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	active := m.store.Active()

	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		ConversationID: active.ID,
		Title:          active.Title,
		Messages:       active.MessageCount(),
		Attachments:    len(m.draft.Attachments),
		Sending:        m.sending,
	}
}
