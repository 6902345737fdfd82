// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/logger"
	"github.com/pdiddy/paperwatch/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, score, and email this period's digest",
	Long: `Run performs one digest job: it loads the sent-paper history, reads the
anchor folder, searches every keyword for papers from the recency window,
scores each new paper with the configured language model, and emails the
papers that meet the score threshold. Emailed papers are then added to the
history so the next run skips them.

With --dry-run nothing is emailed and the history is left untouched; the
rendered digest is written to --out (stdout by default).`,
	RunE: runDigest,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "score and render without sending or recording history")
	runCmd.Flags().String("out", "", "write the rendered HTML digest here on a dry run (default stdout)")
	runCmd.Flags().String("report", "", "write a YAML report of the run to this path")
	runCmd.Flags().String("csl", "", "write the selected papers as CSL-YAML to this path")
	runCmd.Flags().StringSlice("keywords", nil, "override search.keywords")
	runCmd.Flags().Int("min-score", 0, "override digest.min_score")
	runCmd.Flags().Int("max-items", 0, "override digest.max_items")

	_ = viper.BindPFlag("search.keywords", runCmd.Flags().Lookup("keywords"))
	_ = viper.BindPFlag("digest.min_score", runCmd.Flags().Lookup("min-score"))
	_ = viper.BindPFlag("digest.max_items", runCmd.Flags().Lookup("max-items"))

	rootCmd.AddCommand(runCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := logger.WithRunID(cmd.Context())
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg := loadRunConfig(viper.GetViper(), loadedSecrets)
	deps, err := pipeline.NewDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.History.Close()

	opts := pipeline.Options{DryRun: dryRun}
	if dryRun {
		out, closeOut, err := createOutput(cmd, "out", cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOut()
		opts.HTMLOut = out
	}
	if path, _ := cmd.Flags().GetString("csl"); path != "" {
		out, closeOut, err := createOutput(cmd, "csl", nil)
		if err != nil {
			return err
		}
		defer closeOut()
		opts.CSLOut = out
	}

	logger.WithContext(ctx).Info("run started",
		"version", version, "dry_run", dryRun,
		"keywords", cfg.Search.Keywords, "backends", cfg.Search.Backends,
		"provider", cfg.LLM.Provider, "history", cfg.History.Backend)

	res, runErr := pipeline.Run(ctx, cfg, deps, opts)

	if path, _ := cmd.Flags().GetString("report"); path != "" && res != nil {
		if err := pipeline.WriteReportFile(path, pipeline.NewReport(logger.RunID(ctx), res)); err != nil {
			slog.Error("writing run report failed", "path", path, "error", err)
		}
	}
	return runErr
}

// createOutput opens the file named by flag, or returns fallback when the
// flag is empty.
func createOutput(cmd *cobra.Command, flag string, fallback io.Writer) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString(flag)
	if path == "" {
		return fallback, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating --%s file: %w", flag, err)
	}
	return f, func() { f.Close() }, nil
}
