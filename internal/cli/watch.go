// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/storage"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/watch"
)

// errNotWatchable is returned for the in-memory backend.
var errNotWatchable = errors.New("storage backend has no file to watch")

func newWatchCommand(o *rootOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the conversation list whenever another process saves it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(o, func(a *app) error {
				files, err := watchedFiles(a.kv, a.persistence.Key())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printConversationList(out, a.store.State())

				w, err := watch.Start(files, a.persistence, debounce, func(st *model.State, ok bool) {
					printReload(out, st, ok)
				})
				if err != nil {
					return err
				}
				defer w.Close()

				<-cmd.Context().Done()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before reloading")
	return cmd
}

// watchedFiles returns the files that change when the slot is saved.
func watchedFiles(kv storage.KV, key string) ([]string, error) {
	switch kv := kv.(type) {
	case *storage.FileKV:
		return []string{kv.Path(key)}, nil
	case *storage.SQLiteKV:
		return []string{kv.Path(), kv.Path() + "-wal"}, nil
	default:
		return nil, errNotWatchable
	}
}

func printReload(w io.Writer, st *model.State, ok bool) {
	fmt.Fprintln(w, Separator(40))
	fmt.Fprintf(w, "%s %s\n", DimStyle.Render("reloaded"), time.Now().Format("15:04:05"))
	if !ok {
		fmt.Fprintln(w, WarningStyle.Render("no stored conversations"))
		return
	}
	printConversationList(w, st)
}
