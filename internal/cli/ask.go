// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/bootstrap"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
)

func newAskCommand(o *rootOptions) *cobra.Command {
	var (
		files   []string
		newChat bool
	)

	cmd := &cobra.Command{
		Use:   "ask [QUESTION...]",
		Short: "Ask one question in the active conversation",
		Example: `  elevatorapp ask "Как да разчета код за грешка F-28 на контролер?"
  elevatorapp ask -f panel.jpg -f schema.pdf
  elevatorapp ask --new "Асансьорът пропада леко при спиране на етаж."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" && len(files) == 0 {
				return usageError("question", "", "give a question or at least one --file", cmd.Example)
			}

			attachments := make([]model.Attachment, 0, len(files))
			for _, path := range files {
				att, err := loadAttachment(path)
				if err != nil {
					return err
				}
				attachments = append(attachments, att)
			}

			a, err := openApp(o.cfg, appOptions{location: bootstrap.NoLocation{}, events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			return ask(cmd.Context(), a, question, attachments, newChat, cmd)
		},
	}
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	cmd.Flags().BoolVar(&newChat, "new", false, "ask in a new conversation")
	return cmd
}

func ask(ctx context.Context, a *app, question string, attachments []model.Attachment, newChat bool, cmd *cobra.Command) error {
	mgr, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	if newChat {
		mgr.NewConversation()
	}

	events, err := a.bus.Subscribe(ctx, conversation.DefaultTopic)
	if err != nil {
		return err
	}
	printerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go newAnswerPrinter(cmd.OutOrStdout(), markdownEnabled()).Run(printerCtx, events)

	mgr.SetQuestion(question)
	mgr.Attach(attachments...)

	err = mgr.Send(ctx)
	if errors.Is(err, stream.ErrProducerFailure) {
		fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render(failureText(err)))
		return reported{err}
	}
	return err
}
