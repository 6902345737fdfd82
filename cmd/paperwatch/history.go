// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/history"
	"github.com/pdiddy/paperwatch/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the record of papers already emailed",
}

var historyCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of history keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Fprintln(cmd.OutOrStdout(), store.Len())
		return nil
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every history key, one per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, k := range store.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var historyCheckCmd = &cobra.Command{
	Use:   "check <id-or-title>...",
	Short: "Report whether papers have been emailed before",
	Long: `Check looks up each argument as a paper ID (DOI, arxiv:<id>, s2:<id>) and
as a title, the same way a run decides to skip a candidate.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, arg := range args {
			state := "new"
			if store.Contains(types.CandidatePaper{ID: arg, Title: arg}) {
				state = "sent"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", state, arg)
		}
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyCountCmd, historyListCmd, historyCheckCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory(cmd *cobra.Command) (history.Store, error) {
	cfg := loadRunConfig(viper.GetViper(), loadedSecrets)
	store, err := history.New(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if err := store.Load(cmd.Context()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
