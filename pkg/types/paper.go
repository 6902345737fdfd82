// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperwatch pipeline:
// anchor papers read from the reference library, candidates returned by the
// search backends, scored candidates, and the run configuration.
package types

import "time"

// AnchorPaper is a reference-library item that represents the user's
// established research interest. Anchors are rebuilt every run and only
// feed the scoring prompt.
type AnchorPaper struct {
	// Key is the library item key.
	Key string `json:"key" yaml:"key"`

	// Title is the item title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the plain-text abstract, possibly truncated.
	Abstract string `json:"abstract" yaml:"abstract"`
}

// CandidatePaper is a recently published paper returned by a search backend.
type CandidatePaper struct {
	// ID is the external identifier: DOI when known, then arXiv ID, then the
	// backend's own paper ID.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Abstract is the plain-text abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PublicationDate is the publication date. When the source only knows
	// the year, it is January 1 of that year and DateIsYear is set.
	PublicationDate time.Time `json:"publication_date" yaml:"publication_date"`

	// DateIsYear reports that PublicationDate carries only a year.
	DateIsYear bool `json:"date_is_year,omitempty" yaml:"date_is_year,omitempty"`

	// URL links to the paper landing page.
	URL string `json:"url" yaml:"url"`

	// Venue is the journal or conference name, if known.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Source identifies which backend found this paper (e.g. "semantic_scholar").
	Source string `json:"source" yaml:"source"`

	// HitKeywords lists every configured keyword whose query returned this paper.
	HitKeywords []string `json:"hit_keywords,omitempty" yaml:"hit_keywords,omitempty"`
}

// HitCount returns the number of keywords that matched the paper, at least 1.
func (p CandidatePaper) HitCount() int {
	if len(p.HitKeywords) == 0 {
		return 1
	}
	return len(p.HitKeywords)
}

// Score bounds.
const (
	MinRelevance = 0
	MaxRelevance = 10
)

// ScoredPaper is a candidate with its model-assigned relevance.
type ScoredPaper struct {
	CandidatePaper `yaml:",inline"`

	// Score is the relevance score in [MinRelevance, MaxRelevance].
	Score int `json:"score" yaml:"score"`

	// Rationale is the model's short explanation, if any.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`

	// Unscored is set when the provider failed or its reply carried no
	// usable score; Score is then 0.
	Unscored bool `json:"unscored,omitempty" yaml:"unscored,omitempty"`
}
