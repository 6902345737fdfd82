// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/pipeline"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Summarize a run report written by run --report",
	Long: `Report reads a YAML run report and prints its counts, the per-keyword
search results, and every scored paper, selected papers marked with "*".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showReport(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func showReport(w io.Writer, path string) error {
	r, err := pipeline.ReadReportFile(path)
	if err != nil {
		return err
	}

	mode := "sent"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "Run %s at %s (%s)\n", r.RunID, r.Date, mode)
	if r.Subject != "" {
		fmt.Fprintf(w, "Subject: %s\n", r.Subject)
	}
	s := r.Summary
	fmt.Fprintf(w, "anchors=%d candidates=%d skipped_history=%d scored=%d unscored=%d selected=%d sent=%d recorded=%d\n",
		s.Anchors, s.Candidates, s.SkippedHistory, s.Scored, s.Unscored, s.Selected, s.Sent, s.Recorded)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(r.Searches) > 0 {
		fmt.Fprintln(tw, "\nKEYWORD\tBACKEND\tRAW\tOLD\tDUP\tNEW\tERROR")
		for _, st := range r.Searches {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				st.Keyword, st.Backend, st.Raw, st.TooOld, st.Duplicates, st.New, st.Error)
		}
	}
	if len(r.Papers) > 0 {
		fmt.Fprintln(tw, "\n\tSCORE\tID\tTITLE")
		for _, p := range r.Papers {
			mark, score := " ", fmt.Sprintf("%d", p.Score)
			if p.Selected {
				mark = "*"
			}
			if p.Unscored {
				score = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, score, p.ID, p.Title)
		}
	}
	return tw.Flush()
}
