// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/config"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/util"
)

func newModelsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known answer models and mark the configured one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printModels(cmd.OutOrStdout(), o.cfg)
			return nil
		},
	}
}

// configuredModel returns the model id the producer backend will use.
func configuredModel(cfg *config.Config) string {
	if cfg.Producer.Backend == model.BackendOllama {
		return cfg.Producer.OllamaModel
	}
	return cfg.Producer.Model
}

func printModels(w io.Writer, cfg *config.Config) {
	current := configuredModel(cfg)
	for _, backend := range []string{model.BackendGemini, model.BackendOllama} {
		fmt.Fprintln(w, TitleStyle.Render(backend))
		for _, info := range model.GetModelsByBackend(backend) {
			marker := "  "
			if info.ID == current && backend == cfg.Producer.Backend {
				marker = ActiveStyle.Render("* ")
			}
			fmt.Fprintf(w, "%s%s %s\n", marker,
				util.PadWidth(info.ID, 18),
				DimStyle.Render(info.CapabilitiesString()))
		}
	}
	if _, ok := model.GetModelInfo(current); !ok {
		fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("configured model %q is not in the list", current)))
	}
}
