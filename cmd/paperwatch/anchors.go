// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/library"
)

var anchorsCmd = &cobra.Command{
	Use:   "anchors",
	Short: "Print the anchor context read from the library folder",
	Long: `Anchors reads the configured library folder and prints the anchor papers
exactly as they are given to the language model, which is useful when tuning
library.folder, library.max_anchors, and library.abstract_chars.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadRunConfig(viper.GetViper(), loadedSecrets)
		if folder, _ := cmd.Flags().GetString("folder"); folder != "" {
			cfg.Library.Folder = folder
		}
		if cfg.Library.Folder == "" {
			return fmt.Errorf("library.folder is required")
		}

		anchors, err := library.LoadAnchors(cmd.Context(), library.NewClient(cfg.Library), cfg.Library)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d anchor papers from %q\n\n", len(anchors), cfg.Library.Folder)
		fmt.Fprint(cmd.OutOrStdout(), library.FormatContext(anchors))
		return nil
	},
}

func init() {
	anchorsCmd.Flags().String("folder", "", "override library.folder")
	rootCmd.AddCommand(anchorsCmd)
}
