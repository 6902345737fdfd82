// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries academic APIs for recent papers matching the
// configured keywords and streams deduplicated candidates.
package search

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/internal/logger"
	"github.com/pdiddy/paperwatch/internal/textutil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Backend searches a single academic API. Each backend (Semantic Scholar,
// OpenAlex, arXiv) implements this interface per the Strategy pattern and
// follows its own pagination until exhausted or Query.MaxPages is reached.
type Backend interface {
	Name() string
	Search(ctx context.Context, query Query) ([]types.CandidatePaper, error)
}

// Query holds the parameters of one keyword search.
type Query struct {
	Keyword  string
	From     time.Time
	To       time.Time
	PageSize int
	MaxPages int
}

const (
	defaultPageSize = 100
	defaultMaxPages = 5
)

func (q Query) pageSize(max int) int {
	n := q.PageSize
	if n <= 0 {
		n = defaultPageSize
	}
	if n > max {
		n = max
	}
	return n
}

func (q Query) maxPages() int {
	if q.MaxPages <= 0 {
		return defaultMaxPages
	}
	return q.MaxPages
}

// KeywordStats counts what one backend returned for one keyword.
type KeywordStats struct {
	Keyword    string
	Backend    string
	Raw        int
	Incomplete int
	TooOld     int
	Duplicates int
	New        int
	Err        string
}

// Fetcher runs every keyword against every backend and merges the results.
// A Fetcher serves a single run: its duplicate tracking is not reset.
type Fetcher struct {
	Backends []Backend
	Config   types.SearchConfig

	// Now returns the current time; nil means time.Now.
	Now func() time.Time

	hits   map[string][]string // candidate ID -> matching keywords
	titles map[string]string   // normalized title -> candidate ID
	stats  []KeywordStats
	calls  int
}

// NewFetcher returns a Fetcher over the given backends.
func NewFetcher(cfg types.SearchConfig, backends ...Backend) *Fetcher {
	return &Fetcher{Backends: backends, Config: cfg}
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Candidates returns a lazy sequence of candidates. Keywords are queried as
// the sequence is consumed, so stopping early skips the remaining API
// calls. Each paper is yielded once, the first time it is seen, carrying the
// keyword that found it; later matches only extend Hits. The sequence
// queries live APIs and is not restartable.
//
// A keyword whose backend request fails (after the retries done by
// httputil.DoWithRetry) is logged and skipped; the others continue.
func (f *Fetcher) Candidates(ctx context.Context, keywords []string) iter.Seq[types.CandidatePaper] {
	return func(yield func(types.CandidatePaper) bool) {
		if f.hits == nil {
			f.hits = make(map[string][]string)
			f.titles = make(map[string]string)
		}

		log := logger.WithContext(logger.WithStage(ctx, "search"))
		to := f.now()
		from := to.Add(-f.Config.Window())

		for _, kw := range keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			for _, b := range f.Backends {
				if err := f.pause(ctx); err != nil {
					return
				}

				st := KeywordStats{Keyword: kw, Backend: b.Name()}
				results, err := b.Search(ctx, Query{
					Keyword:  kw,
					From:     from,
					To:       to,
					PageSize: f.Config.PageSize,
					MaxPages: f.Config.MaxPages,
				})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					st.Err = err.Error()
					f.stats = append(f.stats, st)
					log.Warn("keyword search failed, skipping its results", "keyword", kw, "backend", b.Name(), "error", err)
					continue
				}

				st.Raw = len(results)
				var fresh []types.CandidatePaper
				for _, p := range results {
					p.Title = textutil.StripMarkup(p.Title)
					p.Abstract = textutil.StripMarkup(p.Abstract)
					switch {
					case strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Abstract) == "":
						st.Incomplete++
					case !IsRecent(p, from):
						st.TooOld++
					case f.merge(&p, kw):
						st.Duplicates++
					default:
						st.New++
						fresh = append(fresh, p)
					}
				}
				f.stats = append(f.stats, st)
				log.Info("keyword searched", "keyword", kw, "backend", b.Name(),
					"raw", st.Raw, "incomplete", st.Incomplete, "too_old", st.TooOld,
					"duplicates", st.Duplicates, "new", st.New)

				for _, p := range fresh {
					if !yield(p) {
						return
					}
				}
			}
		}
	}
}

// merge registers p under kw. It reports true when p duplicates a paper
// already seen (by ID or normalized title), in which case only the keyword
// is recorded. New papers get an ID if they lack one.
func (f *Fetcher) merge(p *types.CandidatePaper, kw string) bool {
	title := textutil.NormalizeTitle(p.Title)
	if p.ID == "" {
		p.ID = "title:" + title
	}

	id := p.ID
	if _, ok := f.hits[id]; !ok {
		if existing, ok := f.titles[title]; ok && title != "" {
			id = existing
		}
	}

	if kws, ok := f.hits[id]; ok {
		if !slices.Contains(kws, kw) {
			f.hits[id] = append(kws, kw)
		}
		return true
	}

	f.hits[id] = []string{kw}
	if title != "" {
		f.titles[title] = id
	}
	p.HitKeywords = []string{kw}
	return false
}

// pause waits RequestDelay between consecutive API calls.
func (f *Fetcher) pause(ctx context.Context) error {
	defer func() { f.calls++ }()
	if f.calls == 0 || f.Config.RequestDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.Config.RequestDelay):
		return nil
	}
}

// Hits returns every keyword that matched the candidate with the given ID.
// It is complete once Candidates has been fully consumed.
func (f *Fetcher) Hits(id string) []string {
	return slices.Clone(f.hits[id])
}

// Stats returns per-keyword, per-backend counts gathered so far.
func (f *Fetcher) Stats() []KeywordStats {
	return slices.Clone(f.stats)
}

// IsRecent reports whether p was published on or after cutoff. Papers that
// carry only a year pass when that year is not before the cutoff's year.
// Papers with no date fail.
func IsRecent(p types.CandidatePaper, cutoff time.Time) bool {
	if p.PublicationDate.IsZero() {
		return false
	}
	if p.DateIsYear {
		return p.PublicationDate.Year() >= cutoff.Year()
	}
	return !p.PublicationDate.Before(cutoff)
}

// NewBackends builds the backends named in cfg.Backends.
func NewBackends(cfg types.SearchConfig) ([]Backend, error) {
	names := cfg.Backends
	if len(names) == 0 {
		names = []string{"semantic_scholar"}
	}
	client := newHTTPClient(cfg.HTTPConfig)

	var backends []Backend
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "semantic_scholar", "s2":
			backends = append(backends, &SemanticScholarBackend{Client: client, APIKey: cfg.SemanticScholarAPIKey, UserAgent: cfg.UserAgent})
		case "openalex":
			backends = append(backends, &OpenAlexBackend{Client: client, Email: cfg.OpenAlexEmail, UserAgent: cfg.UserAgent})
		case "arxiv":
			backends = append(backends, &ArxivBackend{Client: client, UserAgent: cfg.UserAgent})
		default:
			return nil, fmt.Errorf("unsupported search backend: %s", name)
		}
	}
	return backends, nil
}

// parseDate parses a YYYY-MM-DD date, falling back to a bare year.
func parseDate(date string, year int) (time.Time, bool, bool) {
	if date != "" {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			return t, false, true
		}
	}
	if year > 0 {
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), true, true
	}
	return time.Time{}, false, false
}

// normalizeDOI strips URL prefixes and lowercases a DOI.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return strings.ToLower(doi)
}
