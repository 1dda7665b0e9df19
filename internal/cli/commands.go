// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/bootstrap"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/export"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/util"
)

// withApp opens the app for one command and closes it afterwards.
func withApp(o *rootOptions, fn func(a *app) error) error {
	a, err := openApp(o.cfg, appOptions{location: bootstrap.NoLocation{}})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// =============================================================================
// LIST
// =============================================================================

func newListCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(a *app) error {
				printConversationList(cmd.OutOrStdout(), a.store.State())
				return nil
			})
		},
	}
}

// titleColumnWidth is the display width of the title column in listings.
const (
	titleColumnWidth   = 40
	previewColumnWidth = 36
)

func printConversationList(w io.Writer, st *model.State) {
	for _, c := range st.Conversations {
		marker := "  "
		title := util.PadWidth(util.TruncateWidth(c.Title, titleColumnWidth), titleColumnWidth)
		if c.ID == st.ActiveID {
			marker = ActiveStyle.Render("* ")
			title = ActiveStyle.Render(title)
		}
		fmt.Fprintf(w, "%s%s %s %s",
			marker,
			title,
			DimStyle.Render(fmt.Sprintf("%3d msg", c.MessageCount())),
			DimStyle.Render(c.ID),
		)
		if last := c.LastMessage(); last != nil && last.Preview() != "" {
			fmt.Fprintf(w, "  %s", DimStyle.Render(util.TruncateWidth(last.Preview(), previewColumnWidth)))
		}
		fmt.Fprintln(w)
	}
}

// =============================================================================
// NEW / SELECT / DELETE / RENAME
// =============================================================================

func newNewCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(a *app) error {
				st := a.store.CreateConversation()
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Created"), st.ActiveID)
				return nil
			})
		},
	}
}

func newSelectCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select ID",
		Short: "Make a conversation active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(a *app) error {
				if _, err := a.store.SelectConversation(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Active:"), a.store.Active().Title)
				return nil
			})
		},
	}
}

func newDeleteCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(a *app) error {
				if _, err := a.store.Conversation(args[0]); err != nil {
					return err
				}
				st := a.store.DeleteConversation(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Deleted"), args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", DimStyle.Render("Active:"), st.Active().Title)
				return nil
			})
		},
	}
}

func newRenameCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE...",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return usageError("title", "", "must not be empty", `elevatorapp rename ID "Врати, етаж 3"`)
			}
			return withApp(o, func(a *app) error {
				if _, err := a.store.RenameConversation(args[0], title); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Renamed to"), title)
				return nil
			})
		},
	}
}

// =============================================================================
// SHARE / IMPORT
// =============================================================================

func newShareCommand(o *rootOptions) *cobra.Command {
	var copyLink bool

	cmd := &cobra.Command{
		Use:   "share [ID]",
		Short: "Print a share link for a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(a *app) error {
				conv, err := a.conversationOrActive(firstArg(args))
				if err != nil {
					return err
				}
				link, err := a.shareLink(conv)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
				if copyLink {
					if err := clipboard.WriteAll(link); err != nil {
						return fmt.Errorf("copy to clipboard: %w", err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("Връзката е копирана."))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&copyLink, "copy", "c", false, "also copy the link to the clipboard")
	return cmd
}

func newImportCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import LINK",
		Short: "Import a shared conversation and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := bootstrap.ParseLocation(strings.TrimSpace(args[0]))
			if err != nil {
				return usageError("link", args[0], err.Error(), "")
			}
			if _, ok := loc.ShareToken(); !ok {
				return usageError("link", args[0], "no share token", "https://host/#share=TOKEN")
			}

			a, err := openApp(o.cfg, appOptions{location: loc})
			if err != nil {
				return err
			}
			defer a.Close()

			// The resolver strips the token only after a successful import.
			if _, ok := loc.ShareToken(); ok {
				return usageError("link", args[0], "invalid share token", "")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Imported"), a.store.Active().Title)
			return nil
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(o *rootOptions) *cobra.Command {
	var (
		format  string
		outDir  string
		pending bool
	)

	cmd := &cobra.Command{
		Use:   "export [ID]",
		Short: "Write a conversation transcript to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = outDir
			opts.IncludePending = pending

			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}
			return withApp(o, func(a *app) error {
				conv, err := a.conversationOrActive(firstArg(args))
				if err != nil {
					return err
				}
				path, err := export.ExportToFile(conv, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Exported"), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md, json or yaml")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&pending, "include-pending", false, "keep an unfinished answer")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
