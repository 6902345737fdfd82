// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score rates candidate papers against the anchor context with a
// language model. Scoring never fails a run: a paper the model cannot
// score gets 0 and is marked unscored.
package score

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/internal/logger"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// backoffBase is the first retry delay; it doubles per attempt. Tests
// shrink it.
var backoffBase = 2 * time.Second

const defaultMaxRetries = 3

// Scorer scores candidates against a fixed anchor context.
type Scorer struct {
	Provider Provider

	// Anchors is the formatted anchor context shared by every prompt.
	Anchors string

	// MaxRetries bounds retries of transient provider errors (default 3).
	MaxRetries int

	// RetryDelay is the first backoff; zero means backoffBase.
	RetryDelay time.Duration

	// Concurrency is the number of papers scored in parallel (default 1).
	Concurrency int
}

// NewScorer returns a Scorer using provider and the retry and concurrency
// settings from cfg.
func NewScorer(provider Provider, anchors string, cfg types.LLMConfig) *Scorer {
	return &Scorer{
		Provider:    provider,
		Anchors:     anchors,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Concurrency: cfg.Concurrency,
	}
}

// Score rates one candidate. It always returns a result: when the provider
// keeps failing or the reply has no usable score, the paper gets score 0
// with Unscored set.
func (s *Scorer) Score(ctx context.Context, c types.CandidatePaper) types.ScoredPaper {
	log := logger.WithContext(logger.WithStage(ctx, "score")).With("paper_id", c.ID, "title", c.Title)
	out := types.ScoredPaper{CandidatePaper: c}

	prompt, err := BuildPrompt(s.Anchors, c)
	if err != nil {
		log.Error("rendering prompt failed", "error", err)
		out.Unscored = true
		out.Rationale = "prompt error: " + err.Error()
		return out
	}

	reply, err := s.complete(ctx, prompt)
	if err != nil {
		log.Warn("scoring failed, paper left unscored", "provider", s.Provider.Name(), "error", err)
		out.Unscored = true
		out.Rationale = "AI error: " + err.Error()
		return out
	}

	score, rationale, ok := ParseScore(reply)
	out.Rationale = rationale
	if !ok {
		log.Warn("no score in model reply, paper left unscored", "reply", reply)
		out.Unscored = true
		return out
	}
	out.Score = score
	log.Info("paper scored", "score", score)
	return out
}

// complete calls the provider, retrying transient failures with
// exponential backoff.
func (s *Scorer) complete(ctx context.Context, prompt string) (string, error) {
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	base := s.RetryDelay
	if base <= 0 {
		base = backoffBase
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := base * (1 << (attempt - 1))
			logger.WithContext(ctx).Debug("retrying provider call", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		reply, err := s.Provider.Complete(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("giving up after %d retries: %w", maxRetries, lastErr)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return httputil.IsTimeout(err)
}

// ScoreAll scores every candidate and returns results in input order.
// With Concurrency above 1 up to that many calls run at once.
func (s *Scorer) ScoreAll(ctx context.Context, candidates []types.CandidatePaper) []types.ScoredPaper {
	results := make([]types.ScoredPaper, len(candidates))
	if s.Concurrency <= 1 {
		for i, c := range candidates {
			results[i] = s.Score(ctx, c)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			results[i] = s.Score(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
