// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one digest job end to end: load history, build the
// anchor context, fetch and score candidates, email the best of them and
// remember what was sent.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/paperwatch/internal/digest"
	"github.com/pdiddy/paperwatch/internal/history"
	"github.com/pdiddy/paperwatch/internal/library"
	"github.com/pdiddy/paperwatch/internal/logger"
	"github.com/pdiddy/paperwatch/internal/score"
	"github.com/pdiddy/paperwatch/internal/search"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Stage names carried by StageError.
const (
	StageConfig  = "config"
	StageHistory = "history"
	StageAnchors = "anchors"
	StageSearch  = "search"
	StageScore   = "score"
	StageRender  = "render"
	StageSend    = "send"
	StagePersist = "persist"
)

// StageError is a fatal error tagged with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func fail(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Deps are the collaborators of a run. Tests substitute fakes.
type Deps struct {
	Library  library.Source
	Backends []search.Backend
	History  history.Store
	Provider score.Provider
	Sender   digest.Sender

	// Now returns the run time; nil means time.Now.
	Now func() time.Time
}

// Options change what a run does with its digest.
type Options struct {
	// DryRun scores and renders but neither sends nor records history.
	DryRun bool

	// HTMLOut receives the rendered digest on a dry run.
	HTMLOut io.Writer

	// CSLOut, when set, receives the selected papers as CSL-YAML.
	CSLOut io.Writer
}

// Summary counts what happened during a run.
type Summary struct {
	Anchors        int `yaml:"anchors"`
	Candidates     int `yaml:"candidates"`
	SkippedHistory int `yaml:"skipped_history"`
	Scored         int `yaml:"scored"`
	Unscored       int `yaml:"unscored"`
	Selected       int `yaml:"selected"`
	Sent           int `yaml:"sent"`
	Recorded       int `yaml:"recorded"`
}

// Result is everything a run produced.
type Result struct {
	Summary  Summary
	Date     time.Time
	Keywords []string
	DryRun   bool
	Searches []search.KeywordStats
	Scored   []types.ScoredPaper
	Selected []types.ScoredPaper
	Subject  string
	HTML     string
}

// Run executes one job. Failures before scoring, a failed send and a failed
// history write are returned as *StageError; problems with single papers
// are logged and absorbed. History is recorded only after the mail server
// accepted the digest, and an empty selection sends nothing.
func Run(ctx context.Context, cfg types.RunConfig, deps Deps, opts Options) (*Result, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	res := &Result{Date: now(), Keywords: cfg.Search.Keywords, DryRun: opts.DryRun}
	log := logger.WithContext(logger.WithStage(ctx, "pipeline"))

	if err := cfg.Validate(!opts.DryRun); err != nil {
		return res, fail(StageConfig, err)
	}

	if err := deps.History.Load(ctx); err != nil {
		return res, fail(StageHistory, err)
	}
	log.Info("history loaded", "records", deps.History.Len())

	anchors, err := library.LoadAnchors(ctx, deps.Library, cfg.Library)
	if err != nil {
		return res, fail(StageAnchors, err)
	}
	res.Summary.Anchors = len(anchors)
	log.Info("anchor context loaded", "anchors", len(anchors), "folder", cfg.Library.Folder)

	fetcher := search.NewFetcher(cfg.Search, deps.Backends...)
	fetcher.Now = deps.Now
	var candidates []types.CandidatePaper
	for p := range fetcher.Candidates(ctx, cfg.Search.Keywords) {
		if deps.History.Contains(p) {
			res.Summary.SkippedHistory++
			continue
		}
		candidates = append(candidates, p)
	}
	res.Searches = fetcher.Stats()
	if err := ctx.Err(); err != nil {
		return res, fail(StageSearch, err)
	}
	for i := range candidates {
		candidates[i].HitKeywords = fetcher.Hits(candidates[i].ID)
	}
	res.Summary.Candidates = len(candidates)
	log.Info("candidates collected", "candidates", len(candidates), "skipped_history", res.Summary.SkippedHistory)

	scorer := score.NewScorer(deps.Provider, library.FormatContext(anchors), cfg.LLM)
	res.Scored = scorer.ScoreAll(ctx, candidates)
	if err := ctx.Err(); err != nil {
		return res, fail(StageScore, err)
	}
	for _, p := range res.Scored {
		if p.Unscored {
			res.Summary.Unscored++
		} else {
			res.Summary.Scored++
		}
	}

	res.Selected = digest.Select(res.Scored, cfg.Digest.MinScore, cfg.Digest.MaxItems)
	res.Summary.Selected = len(res.Selected)
	if len(res.Selected) == 0 {
		log.Info("no papers met the score threshold, nothing to send", "min_score", cfg.Digest.MinScore)
		logSummary(ctx, res.Summary)
		return res, nil
	}

	d := digest.Digest{Date: res.Date, WindowDays: cfg.Search.WindowDays, Papers: res.Selected}
	res.Subject = digest.Subject(d)
	res.HTML, err = digest.Render(d)
	if err != nil {
		return res, fail(StageRender, err)
	}
	if opts.CSLOut != nil {
		if err := digest.WriteCSL(opts.CSLOut, res.Selected); err != nil {
			return res, fail(StageRender, err)
		}
	}

	if opts.DryRun {
		if opts.HTMLOut != nil {
			if _, err := io.WriteString(opts.HTMLOut, res.HTML); err != nil {
				return res, fail(StageRender, fmt.Errorf("writing digest: %w", err))
			}
		}
		log.Info("dry run, digest not sent", "subject", res.Subject)
		logSummary(ctx, res.Summary)
		return res, nil
	}

	if err := deps.Sender.Send(ctx, res.Subject, res.HTML); err != nil {
		return res, fail(StageSend, err)
	}
	res.Summary.Sent = len(res.Selected)
	log.Info("digest sent", "subject", res.Subject, "papers", len(res.Selected))

	for _, p := range res.Selected {
		deps.History.Record(p.CandidatePaper)
	}
	if err := deps.History.Persist(ctx); err != nil {
		return res, fail(StagePersist, fmt.Errorf("digest was sent but history was not saved, papers may be sent again: %w", err))
	}
	res.Summary.Recorded = len(res.Selected)
	logSummary(ctx, res.Summary)
	return res, nil
}

func logSummary(ctx context.Context, s Summary) {
	logger.WithContext(logger.WithStage(ctx, "pipeline")).Info("run finished",
		"anchors", s.Anchors,
		"candidates", s.Candidates,
		"skipped_history", s.SkippedHistory,
		"scored", s.Scored,
		"unscored", s.Unscored,
		"selected", s.Selected,
		"sent", s.Sent,
		"recorded", s.Recorded,
	)
}
