// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/config"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// rootOptions holds persistent flag values and the loaded configuration.
type rootOptions struct {
	configPath string
	logLevel   string
	backend    string
	storage    string
	dataDir    string

	cfg *config.Config
}

// NewRootCommand builds the elevatorapp command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "elevatorapp",
		Short: "Асистент за техници по асансьори",
		Long: `elevatorapp answers elevator troubleshooting questions with a Gemini or
local Ollama model. Conversations are kept on disk and can be shared as links.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.elevatorapp/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&opts.backend, "backend", "", "answer backend: gemini or ollama")
	pf.StringVar(&opts.storage, "storage", "", "storage backend: file, sqlite or memory")
	pf.StringVar(&opts.dataDir, "data-dir", "", "directory holding the conversation snapshot")

	root.AddCommand(
		newChatCommand(opts),
		newAskCommand(opts),
		newListCommand(opts),
		newNewCommand(opts),
		newSelectCommand(opts),
		newDeleteCommand(opts),
		newRenameCommand(opts),
		newShareCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newWatchCommand(opts),
		newModelsCommand(opts),
		newVersionCommand(),
	)
	return root
}

// load reads the config, applies flag overrides and starts logging.
func (o *rootOptions) load() error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.backend != "" {
		cfg.Producer.Backend = o.backend
	}
	if o.storage != "" {
		cfg.Storage.Backend = o.storage
	}
	if o.dataDir != "" {
		cfg.Storage.Dir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	o.cfg = cfg
	return nil
}

// Execute runs the root command and exits with a code matching the error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		displayError(os.Stderr, err)
		os.Exit(GetExitCode(err))
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "elevatorapp %s\n", Version)
		},
	}
}
