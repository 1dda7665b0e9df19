// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/bootstrap"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/export"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/session"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/voice"
)

// ExampleQuestions are offered by /examples.
var ExampleQuestions = []string{
	"Какви са стъпките за диагностика на проблем с вратите, които не се затварят напълно?",
	"Асансьорът пропада леко при спиране на етаж. Какви може да са причините?",
	"Как да разчета код за грешка F-28 на контролер?",
	"Предложи процедура за смяна на носещите въжета.",
}

func newChatCommand(o *rootOptions) *cobra.Command {
	var openLink string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Type a question and press Enter. Lines starting with "/" are commands;
type /help to list them. Ctrl+C stops the answer being generated,
Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var loc bootstrap.Location = bootstrap.NoLocation{}
			if openLink != "" {
				u, err := bootstrap.ParseLocation(strings.TrimSpace(openLink))
				if err != nil {
					return usageError("open", openLink, err.Error(), "")
				}
				loc = u
			}

			a, err := openApp(o.cfg, appOptions{location: loc, events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			// SIGINT cancels one answer, not the session.
			ctx := context.WithoutCancel(cmd.Context())

			mgr, err := a.newSession(ctx)
			if err != nil {
				return err
			}

			repl := newChatREPL(a, mgr, cmd.OutOrStdout())
			defer repl.Close()
			return repl.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&openLink, "open", "", "import a share link before starting")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

type chatREPL struct {
	app      *app
	mgr      *session.Manager
	out      io.Writer
	line     *liner.State
	history  string
	markdown bool
	renderer *glamour.TermRenderer

	mu     sync.Mutex
	cancel context.CancelFunc // of the running answer or dictation
}

func newChatREPL(a *app, mgr *session.Manager, out io.Writer) *chatREPL {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &chatREPL{
		app:      a,
		mgr:      mgr,
		out:      out,
		line:     line,
		history:  filepath.Join(a.cfg.DataDir(), "chat_history"),
		markdown: markdownEnabled(),
	}
	if r.markdown {
		r.renderer = newMarkdownRenderer(GetTerminalWidth())
	}
	if f, err := os.Open(r.history); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Close saves history and restores the terminal.
func (r *chatREPL) Close() {
	if f, err := os.OpenFile(r.history, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// Run reads lines until /quit, Ctrl+C at the prompt or EOF.
func (r *chatREPL) Run(ctx context.Context) error {
	events, err := r.app.bus.Subscribe(ctx, conversation.DefaultTopic)
	if err != nil {
		return err
	}
	printer := newAnswerPrinter(r.out, r.markdown)
	printerCtx, stopPrinter := context.WithCancel(ctx)
	defer stopPrinter()
	go printer.Run(printerCtx, events)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go r.cancelOnSignal(printerCtx, sigs)

	r.mgr.SetFailureCallback(func(err error) {
		fmt.Fprintln(r.out, ErrorStyle.Render(failureText(err)))
	})

	r.printWelcome()

	for {
		input, err := r.line.PromptWithSuggestion(r.prompt(), r.mgr.Draft().Question, -1)
		if err != nil {
			// liner.ErrPromptAborted on Ctrl+C, io.EOF on Ctrl+D.
			fmt.Fprintln(r.out)
			return nil
		}
		input = strings.TrimSpace(input)
		if input != "" {
			r.line.AppendHistory(input)
		}

		if strings.HasPrefix(input, "/") {
			quit, err := r.handleCommand(ctx, input)
			if err != nil {
				displayError(r.out, err)
			}
			if quit {
				return nil
			}
			continue
		}

		r.mgr.SetQuestion(input)
		if r.mgr.Draft().IsEmpty() {
			continue
		}
		r.send(ctx)
	}
}

func (r *chatREPL) cancelOnSignal(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			r.mu.Lock()
			if r.cancel != nil {
				r.cancel()
				r.cancel = nil
				fmt.Fprintln(r.out, "\n"+WarningStyle.Render("[Прекъснато]"))
			}
			r.mu.Unlock()
		}
	}
}

// interruptible returns a context that the next SIGINT cancels.
func (r *chatREPL) interruptible(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	return ctx, func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}
}

func (r *chatREPL) send(ctx context.Context) {
	ctx, done := r.interruptible(ctx)
	defer done()

	fmt.Fprintln(r.out)
	err := r.mgr.Send(ctx)
	switch {
	case err == nil, errors.Is(err, stream.ErrProducerFailure):
		// answer printed by events, failure by the callback
	case errors.Is(err, session.ErrEmptyDraft):
	default:
		displayError(r.out, err)
	}
	fmt.Fprintln(r.out)
}

func (r *chatREPL) prompt() string {
	p := "elevatorapp> "
	if n := len(r.mgr.Draft().Attachments); n > 0 {
		p = fmt.Sprintf("[%d файла] %s", n, p)
	}
	return PromptStyle.Render(p)
}

func (r *chatREPL) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("Асистент за техници по асансьори"))
	fmt.Fprintln(r.out, DimStyle.Render("Напишете въпрос или /help за командите."))
	fmt.Fprintln(r.out)

	active := r.app.store.Active()
	if active.IsEmpty() {
		fmt.Fprintln(r.out, DimStyle.Render("Примерни въпроси (/examples N):"))
		r.printExamples()
		return
	}
	printConversation(r.out, active, r.renderer)
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printExamples() {
	for i, q := range ExampleQuestions {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, q)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const chatHelp = `Commands:
  /new                 start a new conversation
  /list                list conversations
  /select N|ID         switch conversation
  /delete N|ID         delete a conversation
  /rename TITLE        rename the active conversation
  /attach PATH...      attach files to the next question
  /detach NAME         remove an attached file
  /dictate             append dictated text to the question
  /share               print (and copy) a share link
  /export [md|json|yaml]  write the transcript to a file
  /examples [N]        show example questions, or use one
  /help                show this help
  /quit                exit`

// handleCommand runs one slash command and reports whether to quit.
func (r *chatREPL) handleCommand(ctx context.Context, input string) (bool, error) {
	name, rest, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	rest = strings.TrimSpace(rest)
	store := r.app.store

	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true, nil

	case "help", "h", "?":
		fmt.Fprintln(r.out, chatHelp)

	case "new", "n":
		st := r.mgr.NewConversation()
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("Нов чат"), DimStyle.Render(st.ActiveID))

	case "list", "ls":
		printConversationList(r.out, store.State())

	case "select", "s":
		id, err := resolveRef(store.State(), rest)
		if err != nil {
			return false, err
		}
		if _, err := store.SelectConversation(id); err != nil {
			return false, err
		}
		printConversation(r.out, store.Active(), r.renderer)

	case "delete", "rm":
		id, err := resolveRef(store.State(), rest)
		if err != nil {
			return false, err
		}
		st := store.DeleteConversation(id)
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render("Активен:"), st.Active().Title)

	case "rename":
		if rest == "" {
			return false, usageError("title", "", "must not be empty", "/rename Врати, етаж 3")
		}
		if _, err := store.RenameConversation(store.State().ActiveID, rest); err != nil {
			return false, err
		}

	case "attach", "a":
		if rest == "" {
			return false, usageError("path", "", "missing", "/attach panel.jpg")
		}
		for _, path := range strings.Fields(rest) {
			att, err := loadAttachment(path)
			if err != nil {
				return false, err
			}
			r.mgr.Attach(att)
			fmt.Fprintf(r.out, "%s %s (%s)\n", SuccessStyle.Render("+"), att.Name, att.MIMEType)
		}

	case "detach":
		if !r.mgr.Detach(rest) {
			return false, usageError("file", rest, "not attached", "")
		}

	case "dictate", "voice":
		return false, r.dictate(ctx)

	case "share":
		link, err := r.app.shareLink(store.Active())
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, link)
		if err := clipboard.WriteAll(link); err == nil {
			fmt.Fprintln(r.out, DimStyle.Render("Връзката е копирана."))
		} else {
			log.Debug().Err(err).Msg("clipboard unavailable")
		}

	case "export":
		opts := export.DefaultOptions()
		exporter, err := export.ForFormat(rest, opts)
		if err != nil {
			return false, err
		}
		path, err := export.ExportToFile(store.Active(), exporter, opts)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("Записано:"), path)

	case "examples", "ex":
		if rest == "" {
			r.printExamples()
			return false, nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > len(ExampleQuestions) {
			return false, usageError("example", rest, fmt.Sprintf("must be 1-%d", len(ExampleQuestions)), "/examples 2")
		}
		r.mgr.SetQuestion(ExampleQuestions[n-1])

	default:
		return false, usageError("command", "/"+name, "unknown", "/help")
	}
	return false, nil
}

// dictate listens for one utterance and appends it to the draft question.
func (r *chatREPL) dictate(ctx context.Context) error {
	cfg := r.app.cfg.Voice
	rec, err := voice.NewCommandRecognizer(cfg.Command, cfg.Language)
	if errors.Is(err, voice.ErrUnsupported) {
		fmt.Fprintln(r.out, WarningStyle.Render("Гласовото въвеждане не се поддържа. Задайте [voice] command в конфигурацията."))
		return nil
	}
	if err != nil {
		return err
	}

	ctx, done := r.interruptible(ctx)
	defer done()

	fmt.Fprintln(r.out, DimStyle.Render("Слушам... (Ctrl+C за спиране)"))
	text, err := voice.ListenOnce(ctx, rec)
	if err != nil {
		return err
	}
	if text != "" {
		r.mgr.AppendTranscript(text)
	}
	return nil
}

// resolveRef accepts a 1-based position from /list or a conversation id.
func resolveRef(st *model.State, ref string) (string, error) {
	if ref == "" {
		return "", usageError("conversation", "", "missing", "/select 2")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(st.Conversations) {
			return "", usageError("conversation", ref, fmt.Sprintf("must be 1-%d", len(st.Conversations)), "")
		}
		return st.Conversations[n-1].ID, nil
	}
	if c, _ := st.Find(ref); c == nil {
		return "", &conversation.Error{Op: "select", ID: ref, Err: conversation.ErrNotFound}
	}
	return ref, nil
}
