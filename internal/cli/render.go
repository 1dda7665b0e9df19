// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// newMarkdownRenderer returns nil when glamour cannot be set up; callers
// then print plain text.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Debug().Err(err).Msg("markdown renderer unavailable")
		return nil
	}
	return r
}

func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// =============================================================================
// ANSWER PRINTER
// =============================================================================

// answerPrinter turns store events into terminal output. In raw mode each
// fragment is written as it is committed; in markdown mode the answer is
// buffered and rendered once it is finalized.
type answerPrinter struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	markdown bool

	mu      sync.Mutex
	answers map[string]*strings.Builder // by message id
}

func newAnswerPrinter(out io.Writer, markdown bool) *answerPrinter {
	p := &answerPrinter{
		out:      out,
		markdown: markdown,
		answers:  make(map[string]*strings.Builder),
	}
	if markdown {
		p.renderer = newMarkdownRenderer(GetTerminalWidth())
	}
	return p
}

// Run consumes events until ctx is done or the channel closes. Every
// message is acked after it is printed.
func (p *answerPrinter) Run(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if e, err := conversation.DecodeEvent(msg); err == nil {
				p.handle(e)
			} else {
				log.Warn().Err(err).Msg("dropping undecodable event")
			}
			msg.Ack()
		}
	}
}

func (p *answerPrinter) handle(e conversation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case conversation.EventTurnBegun:
		p.answers[e.MessageID] = &strings.Builder{}
		if p.markdown {
			fmt.Fprintln(p.out, DimStyle.Render("..."))
		}

	case conversation.EventFragment:
		b, ok := p.answers[e.MessageID]
		if !ok {
			b = &strings.Builder{}
			p.answers[e.MessageID] = b
		}
		b.WriteString(e.Text)
		if !p.markdown {
			fmt.Fprint(p.out, e.Text)
		}

	case conversation.EventFinalized:
		text := ""
		if b, ok := p.answers[e.MessageID]; ok {
			text = b.String()
		}
		delete(p.answers, e.MessageID)
		if p.markdown {
			fmt.Fprint(p.out, renderMarkdown(p.renderer, text))
		} else {
			fmt.Fprintln(p.out)
		}
		printSources(p.out, e.Sources)

	case conversation.EventFailed:
		delete(p.answers, e.MessageID)
		if !p.markdown {
			fmt.Fprintln(p.out)
		}
	}
}

// printSources lists grounding sources under an answer.
func printSources(w io.Writer, sources []model.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, DimStyle.Render("Източници:"))
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = s.URI
		}
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, title, SourceStyle.Render(s.URI))
	}
}

// printConversation writes a stored transcript, used when switching
// conversations in the chat REPL.
func printConversation(w io.Writer, conv *model.Conversation, renderer *glamour.TermRenderer) {
	fmt.Fprintln(w, TitleStyle.Render(conv.Title))
	for _, m := range conv.Messages {
		switch m.Role {
		case model.RoleUser:
			fmt.Fprintf(w, "%s %s\n", UserStyle.Render(">"), m.Content)
		default:
			if m.Pending {
				fmt.Fprintln(w, DimStyle.Render("..."))
				continue
			}
			fmt.Fprint(w, renderMarkdown(renderer, m.Content))
			if renderer == nil {
				fmt.Fprintln(w)
			}
			printSources(w, m.Sources)
		}
	}
}
