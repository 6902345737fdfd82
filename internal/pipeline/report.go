// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Report is the on-disk record of a run, written with --report.
type Report struct {
	RunID    string         `yaml:"run_id,omitempty"`
	Date     string         `yaml:"date"`
	DryRun   bool           `yaml:"dry_run"`
	Keywords []string       `yaml:"keywords"`
	Summary  Summary        `yaml:"summary"`
	Subject  string         `yaml:"subject,omitempty"`
	Searches []SearchReport `yaml:"searches,omitempty"`
	Papers   []PaperReport  `yaml:"papers,omitempty"`
}

// SearchReport is one keyword and backend's search counts.
type SearchReport struct {
	Keyword    string `yaml:"keyword"`
	Backend    string `yaml:"backend"`
	Raw        int    `yaml:"raw"`
	Incomplete int    `yaml:"incomplete,omitempty"`
	TooOld     int    `yaml:"too_old,omitempty"`
	Duplicates int    `yaml:"duplicates,omitempty"`
	New        int    `yaml:"new"`
	Error      string `yaml:"error,omitempty"`
}

// PaperReport is one scored candidate.
type PaperReport struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Score     int      `yaml:"score"`
	Unscored  bool     `yaml:"unscored,omitempty"`
	Selected  bool     `yaml:"selected,omitempty"`
	Keywords  []string `yaml:"keywords,omitempty"`
	URL       string   `yaml:"url,omitempty"`
	Rationale string   `yaml:"rationale,omitempty"`
}

// NewReport summarizes res.
func NewReport(runID string, res *Result) Report {
	r := Report{
		RunID:    runID,
		Date:     res.Date.Format(time.RFC3339),
		DryRun:   res.DryRun,
		Keywords: res.Keywords,
		Summary:  res.Summary,
		Subject:  res.Subject,
	}
	for _, st := range res.Searches {
		r.Searches = append(r.Searches, SearchReport{
			Keyword:    st.Keyword,
			Backend:    st.Backend,
			Raw:        st.Raw,
			Incomplete: st.Incomplete,
			TooOld:     st.TooOld,
			Duplicates: st.Duplicates,
			New:        st.New,
			Error:      st.Err,
		})
	}
	selected := make(map[string]bool, len(res.Selected))
	for _, p := range res.Selected {
		selected[p.ID] = true
	}
	for _, p := range res.Scored {
		r.Papers = append(r.Papers, PaperReport{
			ID:        p.ID,
			Title:     p.Title,
			Score:     p.Score,
			Unscored:  p.Unscored,
			Selected:  selected[p.ID],
			Keywords:  p.HitKeywords,
			URL:       p.URL,
			Rationale: p.Rationale,
		})
	}
	return r
}

// WriteReport encodes r as YAML to w.
func WriteReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&r); err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return enc.Close()
}

// WriteReportFile saves r to path.
func WriteReportFile(path string, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := WriteReport(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadReportFile loads a report written by WriteReportFile.
func ReadReportFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}
