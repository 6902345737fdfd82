// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/pkg/types"
)

func init() {
	backoffBase = time.Millisecond
}

// scriptedProvider answers each call with the next step of its script;
// the last step repeats.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	reply string
	err   error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.steps[min(p.calls, len(p.steps)-1)]
	p.calls++
	return s.reply, s.err
}

// titleProvider scores each paper by the number in its title.
type titleProvider struct {
	inFlight, peak atomic.Int32
}

func (p *titleProvider) Name() string { return "title" }

func (p *titleProvider) Complete(_ context.Context, prompt string) (string, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	_, rest, _ := strings.Cut(prompt, "Title: Paper ")
	num, _, _ := strings.Cut(rest, "\n")
	return "SCORE: " + num + "\nREASON: title says so", nil
}

var candidate = types.CandidatePaper{ID: "10.1/a", Title: "Paper", Abstract: "Abstract"}

func TestScoreSuccess(t *testing.T) {
	p := &scriptedProvider{steps: []step{{reply: "SCORE: 7\nREASON: Related method."}}}
	s := &Scorer{Provider: p, Anchors: "- Title: A"}

	got := s.Score(context.Background(), candidate)
	assert.Equal(t, 7, got.Score)
	assert.Equal(t, "Related method.", got.Rationale)
	assert.False(t, got.Unscored)
	assert.Equal(t, candidate, got.CandidatePaper)
	assert.Equal(t, 1, p.calls)
}

func TestScoreRetriesTransientErrors(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		{err: &APIError{Provider: "scripted", StatusCode: http.StatusTooManyRequests}},
		{err: &APIError{Provider: "scripted", StatusCode: http.StatusBadGateway}},
		{reply: "SCORE: 9\nREASON: ok"},
	}}
	s := &Scorer{Provider: p, MaxRetries: 3}

	got := s.Score(context.Background(), candidate)
	assert.Equal(t, 9, got.Score)
	assert.False(t, got.Unscored)
	assert.Equal(t, 3, p.calls)
}

func TestScoreGivesUpAfterMaxRetries(t *testing.T) {
	p := &scriptedProvider{steps: []step{{err: &APIError{Provider: "scripted", StatusCode: http.StatusServiceUnavailable}}}}
	s := &Scorer{Provider: p, MaxRetries: 2}

	got := s.Score(context.Background(), candidate)
	assert.True(t, got.Unscored)
	assert.Equal(t, 0, got.Score)
	assert.Contains(t, got.Rationale, "AI error")
	assert.Equal(t, 3, p.calls, "one attempt plus two retries")
}

func TestScoreDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", &APIError{Provider: "scripted", StatusCode: http.StatusUnauthorized}},
		{"plain error", errors.New("decoding response: unexpected EOF")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{steps: []step{{err: tt.err}}}
			s := &Scorer{Provider: p, MaxRetries: 3}

			got := s.Score(context.Background(), candidate)
			assert.True(t, got.Unscored)
			assert.Equal(t, 1, p.calls)
		})
	}
}

func TestScoreUnparseableReply(t *testing.T) {
	p := &scriptedProvider{steps: []step{{reply: "I am unable to judge this."}}}
	s := &Scorer{Provider: p}

	got := s.Score(context.Background(), candidate)
	assert.True(t, got.Unscored)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, "I am unable to judge this.", got.Rationale)
	assert.Equal(t, 1, p.calls, "parse failures are not retried")
}

func TestScoreCancelledDuringBackoff(t *testing.T) {
	old := backoffBase
	backoffBase = time.Hour
	defer func() { backoffBase = old }()

	p := &scriptedProvider{steps: []step{{err: &APIError{Provider: "scripted", StatusCode: http.StatusTooManyRequests}}}}
	s := &Scorer{Provider: p}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := s.Score(ctx, candidate)
	assert.True(t, got.Unscored)
	assert.Equal(t, 1, p.calls)
}

func TestScoreAllPreservesOrder(t *testing.T) {
	for _, concurrency := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			var candidates []types.CandidatePaper
			for i := range 10 {
				candidates = append(candidates, types.CandidatePaper{
					ID:       fmt.Sprintf("id-%d", i),
					Title:    fmt.Sprintf("Paper %d", i),
					Abstract: "x",
				})
			}
			p := &titleProvider{}
			s := &Scorer{Provider: p, Concurrency: concurrency}

			got := s.ScoreAll(context.Background(), candidates)
			require.Len(t, got, 10)
			for i, sp := range got {
				assert.Equal(t, fmt.Sprintf("id-%d", i), sp.ID)
				assert.Equal(t, i, sp.Score)
			}
			assert.LessOrEqual(t, int(p.peak.Load()), max(concurrency, 1))
		})
	}
}

func TestNewScorer(t *testing.T) {
	p := &scriptedProvider{steps: []step{{reply: "SCORE: 1"}}}
	s := NewScorer(p, "ctx", types.LLMConfig{MaxRetries: 5, Concurrency: 2, RetryDelay: time.Second})
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, time.Second, s.RetryDelay)
	assert.Equal(t, 2, s.Concurrency)
	assert.Equal(t, "ctx", s.Anchors)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 500})))
	assert.False(t, isRetryable(&APIError{StatusCode: 404}))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(errors.New("boom")))
}
