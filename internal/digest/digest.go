// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest selects the best-scored papers of a run, renders them as
// an HTML email and delivers it.
package digest

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Digest is one email's worth of papers.
type Digest struct {
	// Date is the run date shown in the header and subject.
	Date time.Time

	// WindowDays is the recency window the candidates were drawn from.
	WindowDays int

	// Papers are the selected papers in rank order.
	Papers []types.ScoredPaper
}

// Select keeps papers scoring at least minScore, ranks them by score, then
// publication date (newest first), then keyword hit count, and returns at
// most maxItems of them. maxItems <= 0 means no cap. Unscored papers are
// never selected.
func Select(scored []types.ScoredPaper, minScore, maxItems int) []types.ScoredPaper {
	var out []types.ScoredPaper
	for _, p := range scored {
		if p.Unscored || p.Score < minScore {
			continue
		}
		out = append(out, p)
	}

	slices.SortStableFunc(out, func(a, b types.ScoredPaper) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.PublicationDate.Compare(a.PublicationDate); c != 0 {
			return c
		}
		return cmp.Compare(b.HitCount(), a.HitCount())
	})

	if maxItems > 0 && len(out) > maxItems {
		out = out[:maxItems]
	}
	return out
}

// Subject returns the email subject line.
func Subject(d Digest) string {
	return fmt.Sprintf("[Weekly] Top %d Papers (%s)", len(d.Papers), d.Date.Format("2006-01-02"))
}
