// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const (
	semanticFields   = "title,abstract,authors,externalIds,year,publicationDate,url,venue"
	semanticMaxLimit = 100
	// semanticMaxOffset is the API's hard ceiling on offset+limit.
	semanticMaxOffset = 1000
)

// SemanticScholarBackend queries the Semantic Scholar Graph API.
type SemanticScholarBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

// Search pages through the relevance-ranked results for the keyword,
// restricted to publications dated from query.From onward. It follows the
// response's next offset until the API stops returning one, the page cap is
// reached, or the API's offset ceiling is hit.
func (b *SemanticScholarBackend) Search(ctx context.Context, query Query) ([]types.CandidatePaper, error) {
	if query.Keyword == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	limit := query.pageSize(semanticMaxLimit)
	var results []types.CandidatePaper
	offset := 0

	for page := 0; page < query.maxPages(); page++ {
		sr, err := b.fetchPage(ctx, query, offset, limit)
		if err != nil {
			if page > 0 {
				return results, nil
			}
			return nil, err
		}

		for _, paper := range sr.Data {
			results = append(results, paper.toCandidate())
		}

		if sr.Next == nil || len(sr.Data) == 0 || *sr.Next+limit > semanticMaxOffset {
			break
		}
		offset = *sr.Next
	}
	return results, nil
}

func (b *SemanticScholarBackend) fetchPage(ctx context.Context, query Query, offset, limit int) (*semanticResponse, error) {
	params := url.Values{
		"query":  {query.Keyword},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}
	if dr := buildDateRange(query.From, query.To); dr != "" {
		params.Set("publicationDateOrYear", dr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	return &sr, nil
}

// buildDateRange returns a publicationDateOrYear filter such as
// "2025-04-22:2025-10-19". Open ends are left blank.
func buildDateRange(from, to time.Time) string {
	if from.IsZero() && to.IsZero() {
		return ""
	}
	var s string
	if !from.IsZero() {
		s = from.Format("2006-01-02")
	}
	s += ":"
	if !to.IsZero() {
		s += to.Format("2006-01-02")
	}
	return s
}

func (p semanticPaper) toCandidate() types.CandidatePaper {
	c := types.CandidatePaper{
		Title:    p.Title,
		Abstract: p.Abstract,
		Venue:    p.Venue,
		URL:      p.URL,
		Source:   "semantic_scholar",
	}
	for _, a := range p.Authors {
		c.Authors = append(c.Authors, a.Name)
	}
	if t, yearOnly, ok := parseDate(p.PublicationDate, p.Year); ok {
		c.PublicationDate = t
		c.DateIsYear = yearOnly
	}

	// Prefer DOI, then arXiv ID, then the Semantic Scholar paper ID.
	switch {
	case p.ExternalIDs.DOI != "":
		c.ID = normalizeDOI(p.ExternalIDs.DOI)
	case p.ExternalIDs.ArXiv != "":
		c.ID = "arxiv:" + p.ExternalIDs.ArXiv
	default:
		c.ID = "s2:" + p.PaperID
	}
	if c.URL == "" && p.ExternalIDs.DOI != "" {
		c.URL = "https://doi.org/" + p.ExternalIDs.DOI
	}
	return c
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Next   *int            `json:"next"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	URL             string              `json:"url"`
	Venue           string              `json:"venue"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}

// newHTTPClient returns the client shared by all backends of a run.
func newHTTPClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
